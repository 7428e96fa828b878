package agent

import (
	"github.com/hupe1980/bqagent/internal/util"
	"github.com/hupe1980/bqagent/tool"
)

// PromptData is the input the task prompt is rendered from.
type PromptData struct {
	Dialect       string      // SQL dialect named in the prompt
	FullTablePath string      // project.dataset.table
	TableName     string      // bare target table name
	UserRequest   string      // the natural language request
	Tools         []tool.Spec // catalog in presentation order
}

func (d PromptData) state() map[string]any {
	return map[string]any{
		"dialect":         d.Dialect,
		"full_table_path": d.FullTablePath,
		"table_name":      d.TableName,
		"user_request":    d.UserRequest,
		"tools":           d.Tools,
	}
}

// Provider supplies the prompt text at runtime.
type Provider interface {
	Instruction(PromptData) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(PromptData) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(d PromptData) (string, error) { return f(d) }

// Instruction is either a prompt template or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template. The template
// sees the keys dialect, full_table_path, table_name, user_request and tools.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(PromptData) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve renders the prompt for d.
func (i Instruction) Resolve(d PromptData) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(d)
	}
	return util.RenderTemplate(i.text, d.state())
}
