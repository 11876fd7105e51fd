// Package wire defines the client-facing event records and the translator
// that produces them from raw engine events.
//
// Every event marshals to a JSON object carrying a "type" discriminator,
// matching what the editor extension parses off the SSE stream:
//
//	{"type":"text","chunk":"...","done":false}
//	{"type":"tool_start","name":"...","agent":"...","args":{}}
//	{"type":"tool_result","name":"...","agent":"...","result":"..."}
//	{"type":"form","form_id":"...","title":"...",...}
//	{"type":"text","chunk":"","done":true}
//	{"type":"error","text":"..."}
package wire

import (
	"encoding/json"

	"github.com/ferrite-ai/ferrite/internal/wire/form"
)

// Event type discriminators.
const (
	TypeText       = "text"
	TypeToolStart  = "tool_start"
	TypeToolResult = "tool_result"
	TypeForm       = "form"
	TypeError      = "error"
)

// Event is a client-facing record. Implementations are the variant structs
// below.
type Event interface {
	isWireEvent()
}

// Text is a streamed chunk of model output. The terminal record of a
// naturally completed turn is Text{Chunk: "", Done: true}; an interrupted
// turn never carries Done=true.
type Text struct {
	Chunk string `json:"chunk"`
	Done  bool   `json:"done"`
}

// ToolStart announces a tool invocation.
type ToolStart struct {
	Name  string         `json:"name"`
	Agent string         `json:"agent"`
	Args  map[string]any `json:"args"`
}

// ToolResult carries a completed tool invocation's result, truncated for
// the wire.
type ToolResult struct {
	Name   string `json:"name"`
	Agent  string `json:"agent"`
	Result string `json:"result"`
}

// FormButton is one clickable choice on an interactive form. It aliases
// the leaf form package's type so tools and wire share one definition.
type FormButton = form.Button

// FormField is one free-text input on an interactive form. It aliases the
// leaf form package's type so tools and wire share one definition.
type FormField = form.Field

// Form asks the client to render an interactive form card. The user's
// response arrives as a regular chat message.
type Form struct {
	FormID      string       `json:"form_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Buttons     []FormButton `json:"buttons"`
	Fields      []FormField  `json:"fields"`
}

// Error terminates a stream after an engine fault.
type Error struct {
	Text string `json:"text"`
}

func (Text) isWireEvent()       {}
func (ToolStart) isWireEvent()  {}
func (ToolResult) isWireEvent() {}
func (Form) isWireEvent()       {}
func (Error) isWireEvent()      {}

// The alias trick below adds the "type" discriminator without recursing
// into the custom marshaler.

func (e Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeText, alias(e)})
}

func (e ToolStart) MarshalJSON() ([]byte, error) {
	type alias ToolStart
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeToolStart, alias(e)})
}

func (e ToolResult) MarshalJSON() ([]byte, error) {
	type alias ToolResult
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeToolResult, alias(e)})
}

func (e Form) MarshalJSON() ([]byte, error) {
	type alias Form
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeForm, alias(e)})
}

func (e Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeError, alias(e)})
}
