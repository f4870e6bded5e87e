package reference

import (
	"fmt"

	"stepflow/internal/api"
)

// ResolveSemantic rewrites every Semantic placeholder in the tree into a
// Reference against a concrete step id. Other nodes are copied unchanged.
//
// Selectors only ever pick steps before wctx.CurrentIndex.
func (r *Resolver) ResolveSemantic(in api.Input, wctx *Context) (api.Input, error) {
	switch v := in.(type) {
	case api.Semantic:
		stepID, err := selectStep(v, wctx)
		if err != nil {
			return nil, err
		}
		path := stepID
		if v.Path != "" {
			path += "." + v.Path
		}
		return api.Reference{Path: path}, nil
	case api.Merge:
		members := make([]api.Input, len(v.Members))
		for i, member := range v.Members {
			rewritten, err := r.ResolveSemantic(member, wctx)
			if err != nil {
				return nil, err
			}
			members[i] = rewritten
		}
		return api.Merge{Members: members}, nil
	case api.Composite:
		fields := make(map[string]api.Input, len(v.Fields))
		for key, field := range v.Fields {
			rewritten, err := r.ResolveSemantic(field, wctx)
			if err != nil {
				return nil, fmt.Errorf("error in key '%s': %w", key, err)
			}
			fields[key] = rewritten
		}
		return api.Composite{Fields: fields}, nil
	case api.List:
		items := make([]api.Input, len(v.Items))
		for i, item := range v.Items {
			rewritten, err := r.ResolveSemantic(item, wctx)
			if err != nil {
				return nil, fmt.Errorf("error at index %d: %w", i, err)
			}
			items[i] = rewritten
		}
		return api.List{Items: items}, nil
	default:
		return in, nil
	}
}

func selectStep(sem api.Semantic, wctx *Context) (string, error) {
	current := wctx.CurrentIndex
	if current > len(wctx.Steps) {
		current = len(wctx.Steps)
	}

	switch sem.Selector {
	case api.SelectPrevious:
		if current >= 1 {
			return wctx.Steps[current-1].ID, nil
		}
	case api.SelectFirst:
		if current >= 1 {
			return wctx.Steps[0].ID, nil
		}
	case api.SelectLatest:
		for i := current - 1; i >= 0; i-- {
			if wctx.Steps[i].ToolID == sem.Tool {
				return wctx.Steps[i].ID, nil
			}
		}
		return "", &Error{
			Ref:    semanticLabel(sem),
			Reason: fmt.Sprintf("no earlier step invokes tool %q", sem.Tool),
		}
	default:
		return "", &Error{Ref: semanticLabel(sem), Reason: "unknown selector"}
	}

	return "", &Error{Ref: semanticLabel(sem), Reason: "no earlier step to select"}
}

func semanticLabel(sem api.Semantic) string {
	label := api.SemanticKey + ":" + string(sem.Selector)
	if sem.Tool != "" {
		label += "(" + sem.Tool + ")"
	}
	if sem.Path != "" {
		label += "." + sem.Path
	}
	return label
}
