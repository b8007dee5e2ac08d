// Package extract pulls the JSON payload out of the classifier's line-oriented
// output and routes its usage signals.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sdejongh/fylr/pkg/models"
)

// ResponseMarker introduces the raw model response
const ResponseMarker = "RAW LLM RESPONSE:"

// An object may contain objects nested two further levels.
var candidatePattern = regexp.MustCompile(`\{(?:[^{}]|\{(?:[^{}]|\{[^{}]*\})*\})*\}`)

// Options tunes extraction
type Options struct {
	// RequireMarker disables the last-line fallback when no marker is present
	RequireMarker bool
}

// Result holds a successfully extracted payload
type Result struct {
	Payload json.RawMessage
	Signals []Signal
	// Ignored lists signal lines whose value could not be parsed
	Ignored []string
	// Candidates is the number of brace-balanced substrings found
	Candidates int
	// FromMarker is set when the payload followed the response marker
	FromMarker bool
}

// ErrorKind classifies extraction failures
type ErrorKind string

const (
	NoValidPayload ErrorKind = "no valid payload"
)

// ExtractionError reports that no payload could be recovered
type ExtractionError struct {
	Kind ErrorKind
	// Raw is the text that was scanned
	Raw string
}

func (e *ExtractionError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("%s: %q", e.Kind, raw)
}

func (e *ExtractionError) Unwrap() error {
	return models.ErrMalformedResponse
}

// Extract scans lines for signals and the JSON payload.
// Signals are delivered to sink (which may be nil) before the payload is
// searched. The first brace-balanced candidate that parses wins.
func Extract(lines []string, sink SignalSink, opts Options) (*Result, error) {
	result := &Result{}
	var body []string
	markerAt := -1

	for _, line := range lines {
		sig, isSignal, ok := parseSignal(line)
		if isSignal {
			if !ok {
				result.Ignored = append(result.Ignored, strings.TrimSpace(line))
				continue
			}
			result.Signals = append(result.Signals, sig)
			if sink != nil {
				sink.HandleSignal(sig)
			}
			continue
		}

		if markerAt < 0 && strings.Contains(line, ResponseMarker) {
			markerAt = len(body)
			// Text after the marker on the same line belongs to the payload
			_, rest, _ := strings.Cut(line, ResponseMarker)
			if strings.TrimSpace(rest) != "" {
				body = append(body, rest)
				continue
			}
			body = append(body, "")
			continue
		}
		body = append(body, line)
	}

	var raw string
	switch {
	case markerAt >= 0:
		raw = strings.Join(body[markerAt:], "")
		result.FromMarker = true
	case opts.RequireMarker:
		return nil, &ExtractionError{Kind: NoValidPayload, Raw: strings.Join(body, "\n")}
	default:
		raw = lastNonEmpty(body)
	}

	candidates := candidatePattern.FindAllString(raw, -1)
	result.Candidates = len(candidates)
	for _, candidate := range candidates {
		if json.Valid([]byte(candidate)) {
			result.Payload = json.RawMessage(candidate)
			return result, nil
		}
	}

	return nil, &ExtractionError{Kind: NoValidPayload, Raw: raw}
}

// Decode extracts and unmarshals the payload into v
func Decode(lines []string, sink SignalSink, opts Options, v any) (*Result, error) {
	result, err := Extract(lines, sink, opts)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result.Payload, v); err != nil {
		return result, &ExtractionError{Kind: NoValidPayload, Raw: string(result.Payload)}
	}
	return result, nil
}

func lastNonEmpty(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
