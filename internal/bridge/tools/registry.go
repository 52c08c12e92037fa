package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/J2DevStudio/n8n-mcp-server/internal/common/apperrors"
)

type entry struct {
	desc    Descriptor
	handler HandlerFunc
	schema  *jsonschema.Schema
}

// Registry maps tool names to descriptors and handlers. Register is meant for
// process start; Invoke and List are safe for concurrent use once
// registration is over.
type Registry struct {
	tools map[string]*entry
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register adds a tool. A name that is already taken yields ErrDuplicateTool
// and leaves the first registration in place.
func (r *Registry) Register(name, description string, params []ParamSpec, handler HandlerFunc) apperrors.Error {
	if name == "" {
		return ErrInvalidTool.Msg("tool name is required")
	}
	if handler == nil {
		return ErrInvalidTool.Msg(fmt.Sprintf("tool %s has no handler", name))
	}
	if _, exists := r.tools[name]; exists {
		return ErrDuplicateTool.Msg(fmt.Sprintf("tool %s is already registered", name))
	}

	doc, err := buildSchema(params)
	if err != nil {
		return ErrInvalidTool.MsgErr(fmt.Sprintf("tool %s: %v", name, err), err)
	}
	compiled, err := compileSchema(name, doc)
	if err != nil {
		return ErrInvalidTool.MsgErr(fmt.Sprintf("tool %s: %v", name, err), err)
	}

	r.tools[name] = &entry{
		desc: Descriptor{
			Name:        name,
			Description: description,
			Params:      append([]ParamSpec(nil), params...),
			InputSchema: doc,
		},
		handler: handler,
		schema:  compiled,
	}
	r.order = append(r.order, name)
	return nil
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	list := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name].desc)
	}
	return list
}

// MCPTools returns the registered tools as MCP tool definitions.
func (r *Registry) MCPTools() []mcp.Tool {
	list := make([]mcp.Tool, 0, len(r.order))
	for _, d := range r.List() {
		list = append(list, mcp.NewToolWithRawSchema(d.Name, d.Description, d.InputSchema))
	}
	return list
}

// Invoke validates args against the tool's parameters and runs its handler.
// It always returns either a result or one of ErrUnknownTool,
// ErrInvalidArguments and ErrToolExecution.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result any, aerr apperrors.Error) {
	e, ok := r.tools[name]
	if !ok {
		return nil, ErrUnknownTool.Msg(fmt.Sprintf("unknown tool: %s", name))
	}

	a, aerr := e.prepare(args)
	if aerr != nil {
		return nil, aerr
	}

	defer func() {
		if p := recover(); p != nil {
			log.Ctx(ctx).Error().Str("tool", name).Interface("panic", p).Msg("tool handler panicked")
			result = nil
			aerr = ErrToolExecution.Msg(fmt.Sprintf("tool %s failed: %v", name, p))
		}
	}()

	res, err := e.handler(ctx, a)
	if err != nil {
		if errors.Is(err, ErrInvalidArguments) {
			if appErr, ok := err.(apperrors.Error); ok {
				return nil, appErr
			}
			return nil, ErrInvalidArguments.Err(err)
		}
		return nil, ErrToolExecution.Err(err)
	}
	return res, nil
}

// prepare applies defaults and validates the arguments.
func (e *entry) prepare(args map[string]any) (Arguments, apperrors.Error) {
	a := make(Arguments, len(args)+len(e.desc.Params))
	for k, v := range args {
		a[k] = v
	}
	for _, p := range e.desc.Params {
		if _, present := a[p.Name]; !present && p.Default != nil {
			a[p.Name] = p.Default
		}
	}

	// The validator expects values shaped like decoded JSON.
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, ErrInvalidArguments.MsgErr(fmt.Sprintf("arguments for %s are not JSON encodable", e.desc.Name), err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ErrInvalidArguments.MsgErr(fmt.Sprintf("arguments for %s are not JSON encodable", e.desc.Name), err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return nil, ErrInvalidArguments.Msg(fmt.Sprintf("invalid arguments for %s: %s", e.desc.Name, describeValidation(err)))
	}
	return a, nil
}
