package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"stepflow/internal/api"
)

// Context is the workflow-wide information semantic references are resolved
// against.
type Context struct {
	// CurrentIndex is the position of the step whose inputs are resolved.
	CurrentIndex int
	// Steps is the full, ordered step list of the workflow.
	Steps []api.Step
}

// Error reports an input that cannot be resolved. Retrying never helps, so
// the runner fails the step without further attempts.
type Error struct {
	// Ref is the reference path or placeholder that failed.
	Ref string
	// StepID is the referenced step, when known.
	StepID string
	// Reason describes the failure.
	Reason string
}

func (e *Error) Error() string {
	if e.Ref == "" {
		return e.Reason
	}
	return fmt.Sprintf("cannot resolve reference %q: %s", e.Ref, e.Reason)
}

// Resolver turns input specifications into concrete values. It holds no
// state and is safe for concurrent use.
type Resolver struct{}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve evaluates in against the results recorded so far.
//
// When wctx is non-nil every Semantic placeholder is first rewritten into a
// Reference against a concrete step id. References then read the output of
// a previous step, merges combine objects with later members winning, and
// composites and lists are resolved element by element.
//
// All failures are returned as *Error, possibly wrapped with the location of
// the failing element.
func (r *Resolver) Resolve(in api.Input, prior *api.StepResults, wctx *Context) (interface{}, error) {
	if in == nil {
		return nil, nil
	}
	if wctx != nil {
		rewritten, err := r.ResolveSemantic(in, wctx)
		if err != nil {
			return nil, err
		}
		in = rewritten
	}
	return r.resolve(in, prior)
}

func (r *Resolver) resolve(in api.Input, prior *api.StepResults) (interface{}, error) {
	switch v := in.(type) {
	case nil:
		return nil, nil
	case api.Literal:
		return v.Value, nil
	case api.Reference:
		return r.lookup(v.Path, prior)
	case api.Merge:
		return r.merge(v, prior)
	case api.Composite:
		out := make(map[string]interface{}, len(v.Fields))
		for key, field := range v.Fields {
			value, err := r.resolve(field, prior)
			if err != nil {
				return nil, fmt.Errorf("error in key '%s': %w", key, err)
			}
			out[key] = value
		}
		return out, nil
	case api.List:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			value, err := r.resolve(item, prior)
			if err != nil {
				return nil, fmt.Errorf("error at index %d: %w", i, err)
			}
			out[i] = value
		}
		return out, nil
	case api.Semantic:
		return nil, &Error{
			Ref:    semanticLabel(v),
			Reason: "semantic references need a workflow context",
		}
	default:
		return nil, &Error{Reason: fmt.Sprintf("unsupported input type %T", in)}
	}
}

func (r *Resolver) merge(m api.Merge, prior *api.StepResults) (interface{}, error) {
	out := make(map[string]interface{})
	for i, member := range m.Members {
		value, err := r.resolve(member, prior)
		if err != nil {
			return nil, fmt.Errorf("error in %s member %d: %w", api.MergeKey, i, err)
		}
		if value == nil {
			continue
		}
		obj, ok := normalize(value).(map[string]interface{})
		if !ok {
			return nil, &Error{
				Ref:    api.MergeKey,
				Reason: fmt.Sprintf("member %d resolved to %T, expected an object", i, value),
			}
		}
		for key, val := range obj {
			out[key] = val
		}
	}
	return out, nil
}

// lookup reads path ("stepId" or "stepId.a.0.b") from the recorded results.
func (r *Resolver) lookup(path string, prior *api.StepResults) (interface{}, error) {
	segments := strings.Split(path, ".")
	stepID := segments[0]

	result, ok := prior.Get(stepID)
	if !ok {
		return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("step %q has no result", stepID)}
	}
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "unknown error"
		}
		return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("step %q failed: %s", stepID, reason)}
	}

	current := result.Result
	walked := stepID
	for _, segment := range segments[1:] {
		if segment == "" {
			return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("empty path segment after %s", walked)}
		}

		switch container := normalize(current).(type) {
		case map[string]interface{}:
			value, exists := container[segment]
			if !exists {
				return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("key %q not found in %s", segment, walked)}
			}
			current = value
		case []interface{}:
			index, err := strconv.Atoi(segment)
			if err != nil {
				return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("%s is an array, %q is not an index", walked, segment)}
			}
			if index < 0 || index >= len(container) {
				return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("index %d out of range for %s (length %d)", index, walked, len(container))}
			}
			current = container[index]
		case nil:
			return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("%s is null, cannot read %q", walked, segment)}
		default:
			return nil, &Error{Ref: path, StepID: stepID, Reason: fmt.Sprintf("%s is a %T, not an object or array", walked, container)}
		}
		walked += "." + segment
	}

	return current, nil
}

// normalize converts typed maps, slices and structs returned by tools into
// the generic JSON shapes the resolver navigates.
func normalize(value interface{}) interface{} {
	switch value.(type) {
	case nil, map[string]interface{}, []interface{}, string, bool, float64, int, int64:
		return value
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
	default:
		return value
	}

	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return value
	}
	return generic
}

// IsError reports whether err is or wraps a resolution *Error.
func IsError(err error) bool {
	var refErr *Error
	return errors.As(err, &refErr)
}
