package agent

import (
	"context"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, info core.RunInfo) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, info core.RunInfo) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, info core.RunInfo) (string, error) { return f(ctx, info) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	template bool
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered with
// text/template against {{.RunID}} and {{.TimeZone}} on every run.
func NewInstructionFromTemplate(text string) Instruction {
	return Instruction{text: text, template: true}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, info core.RunInfo) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil && !i.template }

// IsZero reports whether no instruction was configured.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text for the run described by ctx.
func (i Instruction) Resolve(ctx context.Context) (string, error) {
	info := core.RunInfoFrom(ctx)
	switch {
	case i.provider != nil:
		return i.provider.Instruction(ctx, info)
	case i.template:
		return util.RenderTemplate(i.text, map[string]any{
			"RunID":    info.RunID,
			"TimeZone": info.TimeZone,
		})
	default:
		return i.text, nil
	}
}
