package tools

import (
	"fmt"
	"math"
)

const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Param declares one tool argument. An empty Type means TypeString.
// Default is substituted when an optional argument is missing.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any
}

func (p Param) typ() string {
	if p.Type == "" {
		return TypeString
	}
	return p.Type
}

// Schema renders params as a JSON schema object for the tool catalog.
func Schema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]string, 0)

	for _, p := range params {
		prop := map[string]any{"type": p.typ()}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}

	return s
}

// Args are the decoded arguments of a tool call.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// validate checks args against params in place, filling in defaults.
// Arguments that are not declared are passed through untouched.
func validate(params []Param, args Args) error {
	for _, p := range params {
		if !args.Has(p.Name) {
			if p.Required {
				return fmt.Errorf("missing required argument: %s", p.Name)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}

		if !hasType(args[p.Name], p.typ()) {
			return fmt.Errorf("argument %s must be of type %s", p.Name, p.typ())
		}
	}

	return nil
}

func hasType(v any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeInteger:
		f, ok := v.(float64)
		return ok && f == math.Trunc(f)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	}
	return true
}
