package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
)

// writeTimeout bounds each write on a stream; the deadline moves forward per write.
const writeTimeout = 30 * time.Second

// client writes SSE frames to one connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// send writes v as one SSE event. event and id are omitted when empty; position
// events use the instant in ms as id so clients can tell frames apart on reconnect.
func (c *client) send(event, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	var frame bytes.Buffer
	frame.Grow(len(data) + 64)
	if event != "" {
		frame.WriteString("event: " + event + "\n")
	}
	if id != "" {
		frame.WriteString("id: " + id + "\n")
	}
	frame.WriteString("data: ")
	frame.Write(data)
	frame.WriteString("\n\n")

	n, err := c.write(frame.Bytes())
	if err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	c.messagesSent++
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(d time.Duration) error {
	_, err := c.write([]byte(fmt.Sprintf("retry: %d\n\n", d.Milliseconds())))
	return err
}

// sendKeepalive writes an SSE comment so idle proxies keep the connection.
func (c *client) sendKeepalive() error {
	n, err := c.write([]byte(":\n\n"))
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	metrics.AddStreamBytes(int64(n))
	return nil
}

func (c *client) write(frame []byte) (int, error) {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := c.w.Write(frame)
	if err != nil {
		return n, err
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	return n, nil
}
