// Package tools is the registry of remote-callable tools. Tools are registered
// once at startup with an explicit parameter list; the registry is read-only
// afterwards and is shared by every session without locking.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ParamType is the primitive JSON type of a parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
)

func (t ParamType) valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// ParamSpec declares one tool parameter.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any // applied when an optional parameter is absent; nil means no default
}

// Arguments are the decoded arguments of one invocation.
type Arguments map[string]any

// String returns the named argument if it is a string.
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Decode copies the arguments into the struct pointed to by out, matching
// fields by their mapstructure tag.
func (a Arguments) Decode(out any) error {
	if err := mapstructure.Decode(map[string]any(a), out); err != nil {
		return ErrInvalidArguments.Msg(fmt.Sprintf("unable to decode arguments: %v", err))
	}
	return nil
}

// HandlerFunc implements a tool. A returned error that wraps
// ErrInvalidArguments is reported as such; any other error becomes
// ErrToolExecution.
type HandlerFunc func(ctx context.Context, args Arguments) (any, error)

// Descriptor is the immutable registration record of a tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Params      []ParamSpec     `json:"-"`
	InputSchema json.RawMessage `json:"inputSchema"`
}
