package main

import (
	"bufio"
	"io"
	"strings"
)

type event struct {
	ID   string
	Name string
	Data string
}

// readEvents parses a server-sent event stream, calling fn per dispatched
// event. Comment lines (heartbeats) are skipped. It returns when r ends.
func readEvents(r io.Reader, fn func(event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cur     event
		pending bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if pending {
				fn(cur)
			}
			cur, pending = event{}, false
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "id":
				cur.ID = value
			case "event":
				cur.Name = value
			case "data":
				if cur.Data != "" {
					cur.Data += "\n"
				}
				cur.Data += value
			default:
				continue
			}
			pending = true
		}
	}
	return scanner.Err()
}
