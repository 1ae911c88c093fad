package tle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Split breaks raw element text into name/line1/line2 triples.
//
// Blank lines are dropped first; the remaining lines are grouped in consecutive
// threes from the first line, so one bad triple never shifts the ones after it.
// One or two trailing lines that do not complete a triple are ignored.
func Split(text string) []Record {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	records := make([]Record, 0, len(lines)/3)
	for i := 0; i+2 < len(lines); i += 3 {
		records = append(records, Record{
			Name:          strings.TrimSpace(lines[i]),
			Line1:         lines[i+1],
			Line2:         lines[i+2],
			CatalogNumber: catalogNumber(lines[i+2]),
		})
	}
	return records
}

// catalogNumber is the second whitespace-separated token of line 2. It is kept as
// text: padded or alpha-5 numbers pass through unchanged.
func catalogNumber(line2 string) string {
	fields := strings.Fields(line2)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// LoadSources reads a JSON array of sources from path.
func LoadSources(path string) ([]Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sources file: %w", err)
	}
	defer f.Close()
	return DecodeSources(f)
}

// DecodeSources decodes and checks a JSON array of sources.
func DecodeSources(r io.Reader) ([]Source, error) {
	var sources []Source
	if err := json.NewDecoder(r).Decode(&sources); err != nil {
		return nil, fmt.Errorf("decoding sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("source %d: name and url are required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %d: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return sources, nil
}
