package wire

import (
	"encoding/json"
	"strings"

	"github.com/ferrite-ai/ferrite/internal/chatlog"
	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/wire/form"
)

// FormMarker prefixes a tool result that encodes an interactive form
// descriptor. The remainder of the string is the form JSON; the model only
// ever sees the opaque confirmation string the tool returned.
const FormMarker = form.Marker

// WireResultLimit caps tool results on the wire. The audit log keeps a
// longer prefix (chatlog.MaxContentLength).
const WireResultLimit = 500

// Translation is the output of translating one raw engine event: wire
// events to enqueue (in order) and audit records to append.
type Translation struct {
	Events []Event
	Audit  []chatlog.Record
}

// Translator maps raw engine events to wire events and accumulates the
// turn's streamed text. One Translator serves exactly one turn; it is used
// from the turn's producer goroutine only and needs no locking.
type Translator struct {
	buf  strings.Builder
	done bool
}

// Translate converts one raw engine event.
func (t *Translator) Translate(ev engine.Event) Translation {
	switch ev := ev.(type) {
	case engine.TextFragment:
		if ev.Text == "" {
			return Translation{}
		}
		t.buf.WriteString(ev.Text)
		return Translation{
			Events: []Event{Text{Chunk: ev.Text}},
		}

	case engine.ToolCall:
		args := ev.Args
		if args == nil {
			args = map[string]any{}
		}
		argsJSON, err := json.Marshal(args)
		if err != nil {
			argsJSON = []byte("{}")
		}
		return Translation{
			Events: []Event{ToolStart{Name: ev.Name, Agent: ev.Agent, Args: args}},
			Audit: []chatlog.Record{{
				Role:    chatlog.RoleToolCall,
				Content: ev.Name + " " + string(argsJSON),
			}},
		}

	case engine.ToolResult:
		if form, ok := parseForm(ev.Result); ok {
			return Translation{
				Events: []Event{form},
				Audit: []chatlog.Record{{
					Role:    chatlog.RoleToolResult,
					Content: ev.Name + " form " + form.FormID,
				}},
			}
		}
		return Translation{
			Events: []Event{ToolResult{
				Name:   ev.Name,
				Agent:  ev.Agent,
				Result: chatlog.Truncate(ev.Result, WireResultLimit),
			}},
			Audit: []chatlog.Record{{
				Role:    chatlog.RoleToolResult,
				Content: ev.Name + " " + ev.Result,
			}},
		}

	case engine.TurnComplete:
		t.done = true
		tr := Translation{
			Events: []Event{Text{Chunk: "", Done: true}},
		}
		if text := t.buf.String(); text != "" {
			tr.Audit = []chatlog.Record{{
				Role:    chatlog.RoleAssistant,
				Content: text,
			}}
		}
		return tr
	}

	return Translation{}
}

// PartialText returns the text streamed so far. On interruption the
// orchestrator captures this for the synthetic completion.
func (t *Translator) PartialText() string {
	return t.buf.String()
}

// Done reports whether the turn-complete marker has been translated.
func (t *Translator) Done() bool {
	return t.done
}

// parseForm decodes a form-marker tool result. Results that carry the
// marker but hold invalid JSON fall through to a plain tool result.
func parseForm(result string) (Form, bool) {
	rest, ok := strings.CutPrefix(result, FormMarker)
	if !ok {
		return Form{}, false
	}
	var form Form
	if err := json.Unmarshal([]byte(rest), &form); err != nil {
		return Form{}, false
	}
	return form, true
}
