package tool

import (
	"reflect"
	"strings"
)

// Param describes one parameter of a tool.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// Spec is the immutable description of a tool.
type Spec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Param returns the parameter with the given name.
func (s Spec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// newSpec derives an ordered Spec from the argument struct and its schema.
func newSpec(name, description string, args any, schema map[string]any) Spec {
	spec := Spec{Name: name, Description: description}

	t := reflect.TypeOf(args)
	if t == nil || t.Kind() != reflect.Struct {
		return spec
	}

	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	if req, ok := schema["required"].([]string); ok {
		for _, r := range req {
			required[r] = true
		}
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		pname, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		prop, ok := props[pname].(map[string]any)
		if !ok {
			continue
		}
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		spec.Params = append(spec.Params, Param{
			Name:        pname,
			Type:        typ,
			Description: desc,
			Required:    required[pname],
		})
	}

	return spec
}
