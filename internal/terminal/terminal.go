// Package terminal implements the MockTerminal the engine's printf/scanf
// built-ins read and write through: an ordered, append-only log of output
// records (never a real os.Stdout, so running the same program twice
// produces byte-identical output for the scenario tests) and a pre-seeded
// input queue scanf consumes whitespace-delimited tokens from.
package terminal

import (
	"strings"

	"github.com/aicheye/crustty/internal/engerr"
)

// RecordKind discriminates a Record's role, mirroring how a real terminal
// session would distinguish program output from the prompts and echoes a
// scanf-driven read produces.
type RecordKind int

const (
	Output RecordKind = iota
	InputPrompt
	InputEcho
)

func (k RecordKind) String() string {
	switch k {
	case Output:
		return "Output"
	case InputPrompt:
		return "InputPrompt"
	case InputEcho:
		return "InputEcho"
	default:
		return "Unknown"
	}
}

// Record is one entry in the terminal log: the text produced, the step
// index that produced it, and its kind.
type Record struct {
	Text       string
	StepIndex  int
	Kind       RecordKind
}

// Terminal is the engine's sole I/O surface.
type Terminal struct {
	Records []Record

	input    []string // whitespace-delimited input tokens, consumed front-to-back
	inputPos int
}

// New returns an empty terminal with input pre-seeded from a single string,
// split on whitespace the way scanf's "%d"/"%c"/"%s" conversions do.
func New(input string) *Terminal {
	return &Terminal{input: strings.Fields(input)}
}

// Clone deep-copies the terminal's full state (record log and input
// cursor) for the snapshot store.
func (t *Terminal) Clone() *Terminal {
	cp := &Terminal{inputPos: t.inputPos}
	cp.Records = append([]Record(nil), t.Records...)
	cp.input = append([]string(nil), t.input...)
	return cp
}

// Write appends one Output record, produced by the given step index.
func (t *Terminal) Write(text string, stepIndex int) {
	t.Records = append(t.Records, Record{Text: text, StepIndex: stepIndex, Kind: Output})
}

// Prompt appends an InputPrompt record, marking that a scanf is about to
// consume input.
func (t *Terminal) Prompt(text string, stepIndex int) {
	t.Records = append(t.Records, Record{Text: text, StepIndex: stepIndex, Kind: InputPrompt})
}

// Echo appends an InputEcho record for the tokens a scanf just consumed.
func (t *Terminal) Echo(text string, stepIndex int) {
	t.Records = append(t.Records, Record{Text: text, StepIndex: stepIndex, Kind: InputEcho})
}

// FullOutput concatenates every Output record's text, in order — the
// sequence the scenario tests assert lines against.
func (t *Terminal) FullOutput() string {
	var b strings.Builder
	for _, r := range t.Records {
		if r.Kind == Output {
			b.WriteString(r.Text)
		}
	}
	return b.String()
}

// NextToken consumes and returns the next whitespace-delimited input token,
// or an error if the scripted input has been exhausted.
func (t *Terminal) NextToken() (string, error) {
	if t.inputPos >= len(t.input) {
		return "", engerr.New(engerr.TypeError, "scanf: input exhausted")
	}
	tok := t.input[t.inputPos]
	t.inputPos++
	return tok, nil
}
