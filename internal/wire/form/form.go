// Package form holds the form-descriptor pieces shared between the tool
// that emits interactive forms and the wire envelope that carries them.
// It exists as a leaf so internal/tools can reference the marker and field
// shapes without importing internal/wire (which imports internal/engine,
// which imports internal/tools).
package form

// Marker prefixes a tool result that encodes an interactive form
// descriptor. The remainder of the string is the form JSON; the model only
// ever sees the opaque confirmation string the tool returned.
const Marker = "__FORM__:"

// Button is one clickable choice on an interactive form.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Field is one free-text input on an interactive form.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}
