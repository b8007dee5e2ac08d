package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/fylr/pkg/models"
)

const planJSON = `{"files":[{"src_path":"/tmp/x/a.txt","dst_path":"Docs/a.txt"}]}`

type recorder struct {
	signals []Signal
}

func (r *recorder) HandleSignal(s Signal) {
	r.signals = append(r.signals, s)
}

func TestExtractAfterMarker(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{
			name:  "SignalsBeforeMarker",
			lines: []string{"TOKEN_USAGE:120", "RAW LLM RESPONSE:", planJSON},
		},
		{
			name:  "SignalsAfterPayload",
			lines: []string{"RAW LLM RESPONSE:", planJSON, "CALL_USAGE:1", "TOKEN_USAGE:5"},
		},
		{
			name:  "SignalsInterleaved",
			lines: []string{"starting", "TOKEN_USAGE:3", "RAW LLM RESPONSE:", `{"files":[`, "CALL_USAGE:1", `{"src_path":"/tmp/x/a.txt","dst_path":"Docs/a.txt"}]}`},
		},
		{
			name:  "PayloadOnMarkerLine",
			lines: []string{"log line", "RAW LLM RESPONSE: " + planJSON},
		},
		{
			name:  "PrettyPrinted",
			lines: []string{"RAW LLM RESPONSE:", "{", `  "files": [`, `    {"src_path": "/tmp/x/a.txt", "dst_path": "Docs/a.txt"}`, "  ]", "}"},
		},
		{
			name:  "FencedPayload",
			lines: []string{"RAW LLM RESPONSE:", "```json", planJSON, "```"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Extract(tt.lines, nil, Options{})
			require.NoError(t, err)
			assert.JSONEq(t, planJSON, string(result.Payload))
			assert.True(t, result.FromMarker)
		})
	}
}

func TestExtractLastLineFallback(t *testing.T) {
	lines := []string{
		"Processing files...",
		"CALL_USAGE:1",
		`{"success": true, "generated_names": {"a.txt": "notes.txt"}}`,
		"",
	}

	result, err := Extract(lines, nil, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "generated_names": {"a.txt": "notes.txt"}}`, string(result.Payload))
	assert.False(t, result.FromMarker)
}

func TestExtractRequireMarker(t *testing.T) {
	_, err := Extract([]string{planJSON}, nil, Options{RequireMarker: true})

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, NoValidPayload, extractErr.Kind)
}

func TestExtractNoValidPayload(t *testing.T) {
	inputs := [][]string{
		nil,
		{},
		{""},
		{"RAW LLM RESPONSE:"},
		{"RAW LLM RESPONSE:", "no json here"},
		{"RAW LLM RESPONSE:", "{not: valid}"},
		{"just text", "and more text"},
		{"{{{{"},
		{"}"},
		{"TOKEN_USAGE:10", "CALL_USAGE:1"},
	}

	for _, lines := range inputs {
		assert.NotPanics(t, func() {
			result, err := Extract(lines, nil, Options{})
			assert.Nil(t, result)

			var extractErr *ExtractionError
			require.True(t, errors.As(err, &extractErr), "lines=%q", lines)
			assert.Equal(t, NoValidPayload, extractErr.Kind)
			assert.ErrorIs(t, err, models.ErrMalformedResponse)
		})
	}
}

func TestExtractFirstParsingCandidateWins(t *testing.T) {
	lines := []string{
		"RAW LLM RESPONSE:",
		`{broken} {"first": 1} {"second": 2}`,
	}

	result, err := Extract(lines, nil, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"first": 1}`, string(result.Payload))
	assert.Equal(t, 3, result.Candidates)
}

func TestExtractNestedObjects(t *testing.T) {
	payload := `{"a":{"b":{"c":1}}}`
	result, err := Extract([]string{"RAW LLM RESPONSE:", payload}, nil, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(result.Payload))
}

func TestExtractRoutesSignals(t *testing.T) {
	lines := []string{
		"TOKEN_USAGE:120",
		"  CALL_USAGE: 2",
		"TOKEN_LIMIT_REACHED:30000",
		"CALL_LIMIT_REACHED:10",
		"MODE_SWITCH:offline",
		"TOKEN_USAGE:lots",
		"RAW LLM RESPONSE:",
		planJSON,
	}

	rec := &recorder{}
	result, err := Extract(lines, rec, Options{})
	require.NoError(t, err)

	want := []Signal{
		{Kind: SignalTokenUsage, Value: 120},
		{Kind: SignalCallUsage, Value: 2},
		{Kind: SignalTokenLimitReached, Value: 30000},
		{Kind: SignalCallLimitReached, Value: 10},
		{Kind: SignalModeSwitch, Mode: models.ModeOffline},
	}
	assert.Equal(t, want, rec.signals)
	assert.Equal(t, want, result.Signals)
	assert.Equal(t, []string{"TOKEN_USAGE:lots"}, result.Ignored)
}

func TestExtractMalformedSignalNotPayload(t *testing.T) {
	// A malformed signal on the last line must not be treated as the payload
	_, err := Extract([]string{`TOKEN_USAGE:{"x":1}`}, nil, Options{})
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestSinkFunc(t *testing.T) {
	var count int
	sink := SinkFunc(func(s Signal) { count++ })
	_, err := Extract([]string{"CALL_USAGE:1", "CALL_USAGE:1", planJSON}, sink, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDecode(t *testing.T) {
	var payload struct {
		Files []struct {
			SrcPath string `json:"src_path"`
			DstPath string `json:"dst_path"`
		} `json:"files"`
	}

	_, err := Decode([]string{"RAW LLM RESPONSE:", planJSON}, nil, Options{}, &payload)
	require.NoError(t, err)
	require.Len(t, payload.Files, 1)
	assert.Equal(t, "Docs/a.txt", payload.Files[0].DstPath)

	var wrongShape []string
	_, err = Decode([]string{planJSON}, nil, Options{}, &wrongShape)
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestExtractionErrorTruncatesRaw(t *testing.T) {
	err := &ExtractionError{Kind: NoValidPayload, Raw: strings.Repeat("x", 500)}
	assert.Less(t, len(err.Error()), 300)
}
