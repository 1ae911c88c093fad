package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	maxBodyBytes = 1 << 20
)

// wantsMsgpack reports whether the client asked for a msgpack response.
func wantsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && (mt == contentTypeMsgpack || mt == "application/x-msgpack") {
			return true
		}
	}
	return false
}

// writeResponse encodes v as msgpack when the client accepts it, JSON otherwise.
// msgpack keys follow the json tags so both encodings carry the same field names.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsMsgpack(r) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		enc.Encode(v)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends {"error": msg}, always as JSON.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// decodeBody reads a JSON or msgpack request body into v, by Content-Type. An
// empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mt == contentTypeMsgpack || mt == "application/x-msgpack" {
		dec := msgpack.NewDecoder(body)
		dec.SetCustomStructTag("json")
		err = dec.Decode(v)
	} else {
		err = json.NewDecoder(body).Decode(v)
	}
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}
