package api

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Reserved keys of the declarative input form.
const (
	// RefKey marks an object as a reference to a previous step's output.
	RefKey = "$ref"
	// MergeKey marks an object as a shallow merge of several inputs.
	MergeKey = "$merge"
	// SemanticKey marks an object as a named placeholder resolved against
	// the workflow context rather than a literal step id.
	SemanticKey = "$semantic"
)

// Input is a step input specification. It is a closed sum type: the only
// implementations are Literal, Reference, Merge, Composite, List and Semantic.
//
// Inputs are parsed from their declarative JSON/YAML form with ParseInput and
// turned back into that form with EncodeInput.
type Input interface {
	isInput()
}

// Literal is a plain value (string, number, bool or nil) passed through unchanged.
type Literal struct {
	Value interface{}
}

// Reference points at a previous step's output. Path is "stepId" or
// "stepId.nested.path"; numeric segments index into arrays.
type Reference struct {
	Path string
}

// Merge shallow-merges the resolved values of its members. Keys of later
// members override keys of earlier ones.
type Merge struct {
	Members []Input
}

// Composite is an object whose property values are themselves inputs.
type Composite struct {
	Fields map[string]Input
}

// List is an array whose elements are themselves inputs.
type List struct {
	Items []Input
}

// SemanticSelector names the rule a Semantic input uses to pick a step.
type SemanticSelector string

const (
	// SelectPrevious picks the step immediately before the current one.
	SelectPrevious SemanticSelector = "previous"
	// SelectFirst picks the first step of the workflow.
	SelectFirst SemanticSelector = "first"
	// SelectLatest picks the most recent earlier step whose tool id equals Tool.
	SelectLatest SemanticSelector = "latest"
)

// Semantic is a named placeholder such as "the most recent screenshot". It is
// rewritten into a Reference against a concrete step id before resolution.
type Semantic struct {
	Selector SemanticSelector
	// Tool restricts SelectLatest to steps invoking this tool id.
	Tool string
	// Path is an optional dot path appended to the selected step id.
	Path string
}

func (Literal) isInput()   {}
func (Reference) isInput() {}
func (Merge) isInput()     {}
func (Composite) isInput() {}
func (List) isInput()      {}
func (Semantic) isInput()  {}

// ParseInput converts a decoded JSON value into an Input tree.
//
// Objects carrying $ref, $merge or $semantic become Reference, Merge and
// Semantic respectively; any other object becomes a Composite and any array a
// List. Everything else is a Literal.
//
// Returns an error if a $ref value is not a string, a $merge value is not an
// array, or a $semantic placeholder is malformed.
func ParseInput(raw interface{}) (Input, error) {
	switch v := raw.(type) {
	case nil:
		return Literal{}, nil
	case map[string]interface{}:
		if ref, ok := v[RefKey]; ok {
			path, isString := ref.(string)
			if !isString {
				return nil, fmt.Errorf("%s must be a string, got %T", RefKey, ref)
			}
			if path == "" {
				return nil, fmt.Errorf("%s must not be empty", RefKey)
			}
			return Reference{Path: path}, nil
		}
		if merge, ok := v[MergeKey]; ok {
			items, isArray := merge.([]interface{})
			if !isArray {
				return nil, fmt.Errorf("%s must be an array, got %T", MergeKey, merge)
			}
			members := make([]Input, 0, len(items))
			for i, item := range items {
				member, err := ParseInput(item)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", MergeKey, i, err)
				}
				members = append(members, member)
			}
			return Merge{Members: members}, nil
		}
		if _, ok := v[SemanticKey]; ok {
			return parseSemantic(v)
		}
		fields := make(map[string]Input, len(v))
		for key, value := range v {
			field, err := ParseInput(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = field
		}
		return Composite{Fields: fields}, nil
	case []interface{}:
		items := make([]Input, 0, len(v))
		for i, value := range v {
			item, err := ParseInput(value)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return List{Items: items}, nil
	default:
		return Literal{Value: v}, nil
	}
}

func parseSemantic(v map[string]interface{}) (Input, error) {
	selector, ok := v[SemanticKey].(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string, got %T", SemanticKey, v[SemanticKey])
	}

	sem := Semantic{Selector: SemanticSelector(selector)}
	if tool, exists := v["tool"]; exists {
		if sem.Tool, ok = tool.(string); !ok {
			return nil, fmt.Errorf("%s tool must be a string, got %T", SemanticKey, tool)
		}
	}
	if path, exists := v["path"]; exists {
		if sem.Path, ok = path.(string); !ok {
			return nil, fmt.Errorf("%s path must be a string, got %T", SemanticKey, path)
		}
	}

	switch sem.Selector {
	case SelectPrevious, SelectFirst:
	case SelectLatest:
		if sem.Tool == "" {
			return nil, fmt.Errorf("%s %q requires a tool", SemanticKey, selector)
		}
	default:
		return nil, fmt.Errorf("unknown %s selector %q", SemanticKey, selector)
	}
	return sem, nil
}

// EncodeInput converts an Input tree back into its declarative form.
func EncodeInput(in Input) interface{} {
	switch v := in.(type) {
	case nil:
		return nil
	case Literal:
		return v.Value
	case Reference:
		return map[string]interface{}{RefKey: v.Path}
	case Merge:
		members := make([]interface{}, 0, len(v.Members))
		for _, m := range v.Members {
			members = append(members, EncodeInput(m))
		}
		return map[string]interface{}{MergeKey: members}
	case Composite:
		out := make(map[string]interface{}, len(v.Fields))
		for key, field := range v.Fields {
			out[key] = EncodeInput(field)
		}
		return out
	case List:
		out := make([]interface{}, 0, len(v.Items))
		for _, item := range v.Items {
			out = append(out, EncodeInput(item))
		}
		return out
	case Semantic:
		out := map[string]interface{}{SemanticKey: string(v.Selector)}
		if v.Tool != "" {
			out["tool"] = v.Tool
		}
		if v.Path != "" {
			out["path"] = v.Path
		}
		return out
	default:
		panic(fmt.Sprintf("api: unknown input type %T", in))
	}
}

// References returns the paths of every Reference in the tree, in a stable order.
// Semantic placeholders are not included since they depend on the workflow context.
func References(in Input) []string {
	var refs []string
	var walk func(Input)
	walk = func(node Input) {
		switch v := node.(type) {
		case Reference:
			refs = append(refs, v.Path)
		case Merge:
			for _, m := range v.Members {
				walk(m)
			}
		case Composite:
			keys := make([]string, 0, len(v.Fields))
			for k := range v.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(v.Fields[k])
			}
		case List:
			for _, item := range v.Items {
				walk(item)
			}
		}
	}
	walk(in)
	return refs
}

// Inputs wraps an Input so it can be embedded in JSON documents.
// The zero value holds no input and resolves to nil.
type Inputs struct {
	Input
}

// NewInputs parses raw into Inputs, panicking on malformed input.
// It is intended for tests and static definitions.
func NewInputs(raw interface{}) Inputs {
	in, err := ParseInput(raw)
	if err != nil {
		panic(fmt.Sprintf("api: invalid inputs: %v", err))
	}
	return Inputs{Input: in}
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Inputs) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	in, err := ParseInput(raw)
	if err != nil {
		return err
	}
	i.Input = in
	return nil
}

// MarshalJSON implements json.Marshaler.
func (i Inputs) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeInput(i.Input))
}
