package tools

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/sjson"
)

var paramNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// buildSchema renders params as a JSON Schema object document.
func buildSchema(params []ParamSpec) ([]byte, error) {
	doc := []byte(`{"type":"object","properties":{}}`)
	var required []string
	seen := make(map[string]bool, len(params))
	var err error
	for _, p := range params {
		if !paramNameRegex.MatchString(p.Name) {
			return nil, fmt.Errorf("invalid parameter name %q", p.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if !p.Type.valid() {
			return nil, fmt.Errorf("parameter %q has unsupported type %q", p.Name, p.Type)
		}
		if p.Required && p.Default != nil {
			return nil, fmt.Errorf("required parameter %q cannot have a default", p.Name)
		}

		prefix := "properties." + p.Name
		if doc, err = sjson.SetBytes(doc, prefix+".type", string(p.Type)); err != nil {
			return nil, err
		}
		if p.Description != "" {
			if doc, err = sjson.SetBytes(doc, prefix+".description", p.Description); err != nil {
				return nil, err
			}
		}
		if p.Default != nil {
			if doc, err = sjson.SetBytes(doc, prefix+".default", p.Default); err != nil {
				return nil, err
			}
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	if len(required) > 0 {
		if doc, err = sjson.SetBytes(doc, "required", required); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// compileSchema compiles a tool's schema document.
func compileSchema(name string, doc []byte) (*jsonschema.Schema, error) {
	url := "inline://tools/" + name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiled, nil
}

// describeValidation flattens a validation error into one line.
func describeValidation(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var leaves []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			msg := e.Message
			if e.InstanceLocation != "" {
				msg = strings.TrimPrefix(e.InstanceLocation, "/") + ": " + msg
			}
			leaves = append(leaves, msg)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(leaves, "; ")
}
