package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/ferrite-ai/ferrite/internal/wire/form"
)

// SendFormInput describes the interactive form to render in the chat panel.
type SendFormInput struct {
	Title       string            `json:"title" jsonschema_description:"Short heading shown in the form card"`
	Description string            `json:"description" jsonschema_description:"One-line explanation of what the user should do"`
	Buttons     []form.Button `json:"buttons" jsonschema_description:"Buttons with a display label and the value returned when clicked"`
	Fields      []form.Field  `json:"fields,omitempty" jsonschema_description:"Optional text-input fields with a name (returned key) and label (prompt)"`
}

// SendForm displays an interactive form to the user. The form definition
// travels to the transport as a marker-prefixed tool result; the model only
// sees a confirmation so it waits for the user's reply instead of reacting
// to the form payload itself.
//
// SendForm manages its own lifecycle events and must not be wrapped in
// WithEvents.
func (k *Kit) SendForm(tctx *ai.ToolContext, input SendFormInput) (string, error) {
	emitter := EmitterFromContext(tctx.Context)
	if emitter != nil {
		emitter.ToolStarted(ToolSendForm, argsMap(input))
	}

	formID := uuid.NewString()[:8]
	if input.Buttons == nil {
		input.Buttons = []form.Button{}
	}
	if input.Fields == nil {
		input.Fields = []form.Field{}
	}
	def := struct {
		FormID      string            `json:"form_id"`
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Buttons     []form.Button `json:"buttons"`
		Fields      []form.Field  `json:"fields"`
	}{
		FormID:      formID,
		Title:       input.Title,
		Description: input.Description,
		Buttons:     input.Buttons,
		Fields:      input.Fields,
	}
	marker := form.Marker + toJSON(def)

	if emitter != nil {
		emitter.ToolFinished(ToolSendForm, marker)
	}
	k.logger.Info("form sent", "form_id", formID, "title", input.Title)

	return fmt.Sprintf("Form %s shown to the user. Wait for their response before continuing.", formID), nil
}
