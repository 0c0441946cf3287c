package chain

import (
	"encoding/base64"
	"strings"

	"anchor-studio/codec"
	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
)

const (
	programDataPrefix = "Program data: "
	programLogPrefix  = "Program log: "
	programPrefix     = "Program "
)

// LogEvent is an event emitted with emit! and recovered from a
// "Program data:" log line.
type LogEvent struct {
	// Line is the index of the log line the event came from.
	Line  int
	Raw   []byte
	Event *codec.DecodedEvent
	Err   error
}

// ProgramLogEvents scans logs for "Program data:" lines written while
// programID was the executing program and decodes them as events. Lines that
// are not valid base64 are skipped; lines that do not decode keep the error.
func ProgramLogEvents(schema *idl.Schema, programID solana.PublicKey, logs []string) []LogEvent {
	var events []LogEvent
	var stack []string
	target := programID.String()

	for i, line := range logs {
		switch {
		case strings.HasPrefix(line, programDataPrefix):
			if len(stack) == 0 || stack[len(stack)-1] != target {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(line, programDataPrefix)))
			if err != nil {
				continue
			}
			ev := LogEvent{Line: i, Raw: raw}
			ev.Event, ev.Err = codec.DecodeEvent(schema, raw)
			events = append(events, ev)

		case strings.HasPrefix(line, programLogPrefix):
			// program output, never an invoke marker

		case strings.HasPrefix(line, programPrefix):
			fields := strings.Fields(strings.TrimPrefix(line, programPrefix))
			if len(fields) < 2 {
				continue
			}
			switch {
			case fields[1] == "invoke":
				stack = append(stack, fields[0])
			case fields[1] == "success" || strings.HasPrefix(fields[1], "failed"):
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
	return events
}

// ProgramLogs returns the "Program log:" messages of programID's own frames,
// prefix stripped.
func ProgramLogs(programID solana.PublicKey, logs []string) []string {
	var out []string
	var stack []string
	target := programID.String()

	for _, line := range logs {
		if strings.HasPrefix(line, programLogPrefix) {
			if len(stack) > 0 && stack[len(stack)-1] == target {
				out = append(out, strings.TrimPrefix(line, programLogPrefix))
			}
			continue
		}
		if !strings.HasPrefix(line, programPrefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, programPrefix))
		if len(fields) < 2 {
			continue
		}
		if fields[1] == "invoke" {
			stack = append(stack, fields[0])
		} else if fields[1] == "success" || strings.HasPrefix(fields[1], "failed") {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return out
}
