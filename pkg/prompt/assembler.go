// Package prompt builds the ordered contents sent to the model for one turn.
package prompt

import (
	"github.com/aretw0/agrobot/pkg/domain"
)

// SystemInstruction restricts the model to agriculture and fixes the output format.
// It is sent as the first user-role message because the model has no system slot
// in multimodal contents.
var SystemInstruction = "You are an agriculture assistant. Answer only questions about agriculture: " +
	"crops, soil, irrigation, fertilizers, pests, plant diseases, livestock, farm machinery and farming practices. " +
	"If the question or the attached image is not related to agriculture, reply exactly: \"" + domain.RefusalMessage + "\". " +
	"Give practical, step-by-step answers and separate every step with the delimiter " + domain.StepDelimiter + " " +
	"so the client can show the steps one at a time. Do not number the steps yourself."

// Assembler combines the system instruction, a window of history and the
// current input into a single ordered message list.
type Assembler struct {
	// Window is the number of history entries included (<= 0 includes none).
	Window int

	// Instruction overrides SystemInstruction when non-empty.
	Instruction string
}

// NewAssembler creates an Assembler that includes the last window entries.
func NewAssembler(window int) *Assembler {
	return &Assembler{Window: window}
}

// Build returns [instruction, history window..., current turn].
// history is never modified.
func (a *Assembler) Build(history []domain.Message, current domain.NormalizedInput) []domain.Message {
	recent := a.recent(history)

	contents := make([]domain.Message, 0, 1+len(recent)+1)
	contents = append(contents, domain.NewTextMessage(domain.RoleUser, a.instruction()))
	contents = append(contents, domain.CloneMessages(recent)...)
	contents = append(contents, current.UserMessage())
	return contents
}

func (a *Assembler) instruction() string {
	if a.Instruction != "" {
		return a.Instruction
	}
	return SystemInstruction
}

// recent keeps only the last Window entries.
func (a *Assembler) recent(history []domain.Message) []domain.Message {
	if a.Window <= 0 {
		return nil
	}
	if len(history) <= a.Window {
		return history
	}
	return history[len(history)-a.Window:]
}
