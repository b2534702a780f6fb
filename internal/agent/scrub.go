package agent

import "strings"

// scaffoldLabels are leading labels the model sometimes echoes from the
// answer prompt. Longest first so "COMPREHENSIVE ANSWER:" wins over "ANSWER:".
var scaffoldLabels = []string{
	"COMPREHENSIVE ANSWER:",
	"FINAL ANSWER:",
	"ANSWER:",
}

// stripScaffold removes a leading scaffold label (and the whitespace around
// it) from a complete answer. Matching is case-insensitive.
func stripScaffold(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	upper := strings.ToUpper(trimmed)
	for _, label := range scaffoldLabels {
		if strings.HasPrefix(upper, label) {
			return strings.TrimLeft(trimmed[len(label):], " \t\r\n")
		}
	}
	return trimmed
}

// answerScrubber applies stripScaffold across a token stream. The first
// tokens are held back until the text is long enough to prove or disprove a
// leading label; after that every token passes straight through. A label
// split across chunk boundaries ("COMPREHEN" + "SIVE ANSWER: …") is still
// stripped.
type answerScrubber struct {
	// emit receives scrubbed output.
	emit func(string)
	// pending buffers tokens while a label prefix is still possible.
	pending strings.Builder
	// resolved is true once the label question is settled.
	resolved bool
	// started is true once visible output has been emitted; before that,
	// leading whitespace is dropped.
	started bool
}

// newAnswerScrubber returns a scrubber forwarding to emit.
func newAnswerScrubber(emit func(string)) *answerScrubber {
	return &answerScrubber{emit: emit}
}

// Feed processes one streamed token.
func (s *answerScrubber) Feed(token string) {
	if s.resolved {
		s.send(token)
		return
	}

	s.pending.WriteString(token)
	view := strings.TrimLeft(s.pending.String(), " \t\r\n")
	upper := strings.ToUpper(view)

	for _, label := range scaffoldLabels {
		if strings.HasPrefix(upper, label) {
			s.resolve(strings.TrimLeft(view[len(label):], " \t\r\n"))
			return
		}
	}

	// Still ambiguous while the buffered text is a prefix of some label.
	for _, label := range scaffoldLabels {
		if len(upper) < len(label) && strings.HasPrefix(label, upper) {
			return
		}
	}

	s.resolve(view)
}

// Flush releases anything still buffered. Call once after the stream ends.
func (s *answerScrubber) Flush() {
	if s.resolved {
		return
	}
	s.resolve(stripScaffold(s.pending.String()))
}

// resolve settles the label question and emits the first visible text.
func (s *answerScrubber) resolve(text string) {
	s.resolved = true
	s.pending.Reset()
	s.send(text)
}

// send forwards text to emit, swallowing leading whitespace until the first
// visible character of the answer.
func (s *answerScrubber) send(text string) {
	if !s.started {
		text = strings.TrimLeft(text, " \t\r\n")
		if text == "" {
			return
		}
		s.started = true
	}
	s.emit(text)
}
