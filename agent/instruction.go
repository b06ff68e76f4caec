package agent

import (
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the message being handled,
// the sender, environment, etc.
type Provider interface {
	Instruction(mc core.MessageContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(mc core.MessageContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(mc core.MessageContext) (string, error) { return f(mc) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(mc core.MessageContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// NewInstructionFromTemplate creates an Instruction rendered per message from
// a text/template. The template sees .Recipient, .Sender (empty when the
// message came from outside the runtime) and .MessageID.
//
//	ins, err := NewInstructionFromTemplate("You are {{.Recipient}}. Reply to {{.Sender | default \"the user\"}}.")
func NewInstructionFromTemplate(text string) (Instruction, error) {
	tmpl, err := util.ParseTemplate(text)
	if err != nil {
		return Instruction{}, err
	}

	return NewInstructionFromFunc(func(mc core.MessageContext) (string, error) {
		data := map[string]string{}
		if mc != nil {
			data["Recipient"] = string(mc.Recipient())
			data["MessageID"] = mc.MessageID()
			if sender, ok := mc.Sender(); ok {
				data["Sender"] = string(sender)
			}
		}

		return tmpl.Render(data)
	}), nil
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(mc core.MessageContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(mc)
	}
	return i.text, nil
}
