package chat

import (
	"bufio"
	"io"
	"strings"
)

type event struct {
	Name string
	Data string
}

// readEvents parses a text/event-stream body and calls fn per dispatched
// event. Comment lines (keepalives) are skipped.
func readEvents(r io.Reader, fn func(event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var (
		name string
		data []string
	)

	for sc.Scan() {
		line := sc.Text()

		switch {
		case line == "":
			if len(data) > 0 || name != "" {
				ev := event{Name: name, Data: strings.Join(data, "\n")}
				if ev.Name == "" {
					ev.Name = "message"
				}
				if err := fn(ev); err != nil {
					return err
				}
			}
			name, data = "", nil
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				name = value
			case "data":
				data = append(data, value)
			}
		}
	}

	return sc.Err()
}
