// Package tools holds the tool catalog: named operations with an input schema
// and a handler, and the dispatch that validates arguments before a handler
// runs.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrUnknownTool is returned by Dispatch for names that were never registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidParams is returned by Dispatch when arguments fail the tool schema.
	ErrInvalidParams = errors.New("invalid params")
	// ErrDuplicateTool is returned by Register when the name is already taken.
	ErrDuplicateTool = errors.New("duplicate tool")
)

// Result is the outcome of one invocation: a rendered payload on success, or
// the error flag and a human readable message on failure.
type Result struct {
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

// Text builds a success result.
func Text(text string) Result {
	return Result{Text: text}
}

// Failure builds a failure result from err.
func Failure(err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{Text: "Error: " + msg, IsError: true}
}

// Handler runs a tool against arguments that already passed its schema.
type Handler func(ctx context.Context, args json.RawMessage) Result

// Typed adapts a handler taking decoded arguments.
func Typed[T any](fn func(ctx context.Context, args T) Result) Handler {
	return func(ctx context.Context, raw json.RawMessage) Result {
		var args T
		if err := json.Unmarshal(raw, &args); err != nil {
			return Failure(fmt.Errorf("decode arguments: %w", err))
		}
		return fn(ctx, args)
	}
}

// Descriptor describes one tool.
type Descriptor struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     Handler
}

type entry struct {
	desc     Descriptor
	resolved *jsonschema.Resolved
}

// Registry maps tool names to descriptors. It is filled once at construction
// and only read afterwards.
type Registry struct {
	order []string
	tools map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register adds d. Names must be unique and the schema must describe an object.
func (r *Registry) Register(d Descriptor) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return errors.New("tool name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	if d.Schema == nil || d.Schema.Type != "object" {
		return fmt.Errorf("tool %q: input schema must have type object", name)
	}
	resolved, err := d.Schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %q: resolve schema: %w", name, err)
	}
	d.Name = name
	r.tools[name] = entry{desc: d, resolved: resolved}
	r.order = append(r.order, name)
	return nil
}

// Descriptors returns the registered tools in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].desc)
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	e, ok := r.tools[name]
	return e.desc, ok
}

// Dispatch validates args against the tool's schema and runs its handler.
// Unknown tools and invalid arguments are returned as errors and never reach a
// handler; everything the handler does ends up in the Result.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (result Result, err error) {
	e, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if len(strings.TrimSpace(string(args))) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := e.resolved.Validate(instance); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Failure(fmt.Errorf("tool %s panicked: %v", name, rec))
			err = nil
		}
	}()
	return e.desc.Handler(ctx, args), nil
}
