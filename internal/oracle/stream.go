package oracle

import (
	"bytes"
	"encoding/json"
	"strings"
)

// doneSentinel terminates an SSE completion stream.
const doneSentinel = "[DONE]"

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DeltaAccumulator incrementally decodes an SSE completion stream fed
// to it as raw bytes and accumulates the delta text. It implements
// io.Writer so it can sit on the write side of an io.TeeReader while
// the raw bytes are forwarded unmodified.
type DeltaAccumulator struct {
	pending bytes.Buffer
	full    strings.Builder
	done    bool
}

// Write consumes a raw chunk of the SSE body. Incomplete lines are
// buffered until the terminating newline arrives in a later chunk.
func (a *DeltaAccumulator) Write(p []byte) (int, error) {
	a.pending.Write(p)
	for {
		line, err := a.pending.ReadString('\n')
		if err != nil {
			// Partial line: keep it pending for the next chunk.
			a.pending.Reset()
			a.pending.WriteString(line)
			break
		}
		a.consumeLine(line)
	}
	return len(p), nil
}

// Flush processes any trailing line that arrived without a newline.
func (a *DeltaAccumulator) Flush() {
	if a.pending.Len() > 0 {
		a.consumeLine(a.pending.String())
		a.pending.Reset()
	}
}

func (a *DeltaAccumulator) consumeLine(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data: ") {
		return
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
	if data == doneSentinel {
		a.done = true
		return
	}

	var ev streamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		// Skip malformed fragments rather than failing the stream.
		return
	}
	if len(ev.Choices) > 0 {
		a.full.WriteString(ev.Choices[0].Delta.Content)
	}
}

// Text returns the accumulated delta text so far.
func (a *DeltaAccumulator) Text() string { return a.full.String() }

// Done reports whether the [DONE] sentinel has been observed.
func (a *DeltaAccumulator) Done() bool { return a.done }
