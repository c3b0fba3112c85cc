package expression

// BuildContext creates an expression evaluation context from the three
// evaluation roots every field expression may reference.
//
// The resulting map has the shape expressions expect:
//
//	{
//	    "field":     {"key": "name", "hide": false, ...},
//	    "model":     {...shared model graph...},
//	    "formState": {...contextual state...},
//	}
//
// The model is an untyped document: usually a map, but it may be a slice
// when expressions write indexed paths into it. Nil roots are replaced
// with empty maps so property access on them resolves to nil instead of
// failing.
func BuildContext(field map[string]interface{}, model interface{}, formState map[string]interface{}) map[string]interface{} {
	ctx := make(map[string]interface{}, 3)

	if field != nil {
		ctx["field"] = field
	} else {
		ctx["field"] = make(map[string]interface{})
	}

	if model != nil {
		ctx["model"] = model
	} else {
		ctx["model"] = make(map[string]interface{})
	}

	if formState != nil {
		ctx["formState"] = formState
	} else {
		ctx["formState"] = make(map[string]interface{})
	}

	return ctx
}
