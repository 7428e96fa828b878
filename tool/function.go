package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/bqagent/core"
	"github.com/hupe1980/bqagent/internal/util"
)

// FunctionTool exposes a typed Go function as a Tool.
//
// The parameter schema is reflected from the argument struct T, so the
// schema shown to the model and the fields the function reads cannot drift
// apart. Decode validates a raw payload against that schema and produces
// Arguments holding a T; Call hands the T to the function.
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	spec       Spec
	parameters map[string]any
	decode     func(raw []byte, d Defaults) (any, error)
	call       func(toolCtx *core.ToolContext, v any) Result
}

// NewFunctionTool constructs a FunctionTool from an argument struct type and
// the function implementing the tool.
//
// Example:
//
//	t := NewFunctionTool("test_query", "Tests a SQL query",
//	  func(tc *core.ToolContext, args TestQueryArgs) Result {
//	    ...
//	  },
//	)
func NewFunctionTool[T any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args T) Result,
) *FunctionTool {
	var zero T
	schema := util.CreateSchema(zero)

	return &FunctionTool{
		spec:       newSpec(name, description, zero, schema),
		parameters: schema,
		decode: func(raw []byte, d Defaults) (any, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			if n, ok := any(&v).(normalizer); ok {
				if err := n.normalize(d); err != nil {
					return nil, err
				}
			}
			return v, nil
		},
		call: func(toolCtx *core.ToolContext, v any) Result {
			args, ok := v.(T)
			if !ok {
				return Result{
					Tool:  name,
					Error: NewToolError(name, fmt.Sprintf("unexpected argument type %T", v), CodeValidation).Error(),
				}
			}
			return fn(toolCtx, args)
		},
	}
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.spec.Name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.spec.Description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Spec returns the ordered parameter description.
func (t *FunctionTool) Spec() Spec { return t.spec }

// Decode validates raw against the schema, decodes it and applies defaults.
// It returns either complete Arguments or a *ValidationError.
func (t *FunctionTool) Decode(raw string, d Defaults) (Arguments, error) {
	payload := []byte(strings.TrimSpace(raw))
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	if err := util.ValidateParameters(payload, t.parameters); err != nil {
		var ve *util.ValidationError
		if errors.As(err, &ve) {
			return Arguments{}, &ValidationError{Tool: t.spec.Name, Field: ve.Field, Message: ve.Message}
		}
		return Arguments{}, &ValidationError{Tool: t.spec.Name, Message: err.Error()}
	}

	v, err := t.decode(payload, d)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Tool = t.spec.Name
			return Arguments{}, ve
		}
		return Arguments{}, &ValidationError{Tool: t.spec.Name, Message: err.Error()}
	}

	return Arguments{Tool: t.spec.Name, Value: v}, nil
}

// Call invokes the underlying function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args Arguments) Result {
	return t.call(toolCtx, args.Value)
}

// setDefault records a default for a parameter and mentions it in both the
// spec and the schema description.
func (t *FunctionTool) setDefault(param string, value any) {
	for i, p := range t.spec.Params {
		if p.Name != param {
			continue
		}
		p.Default = value
		p.Description = fmt.Sprintf("%s (defaults to '%v')", p.Description, value)
		t.spec.Params[i] = p

		if props, ok := t.parameters["properties"].(map[string]any); ok {
			if prop, ok := props[param].(map[string]any); ok {
				prop["description"] = p.Description
			}
		}
	}
}

// setBound sets a schema bound ("minimum" or "maximum") of a numeric parameter.
func (t *FunctionTool) setBound(param, bound string, value int) {
	if props, ok := t.parameters["properties"].(map[string]any); ok {
		if prop, ok := props[param].(map[string]any); ok {
			prop[bound] = value
		}
	}
}

var _ Tool = (*FunctionTool)(nil)
