package registry

// ApplyEnumBindings walks doc along each binding's pointer and replaces the
// raw code value found there with its literal, using enums to resolve the
// lookup. Values that aren't strings, or codes with no matching literal,
// are left untouched.
func ApplyEnumBindings(doc map[string]interface{}, bindings []EnumFieldBinding, enums *EnumRegistry) {
	if enums == nil {
		return
	}
	for _, b := range bindings {
		enum, ok := enums.Get(b.EnumName)
		if !ok {
			continue
		}
		applyBinding(doc, b.Pointer, enum)
	}
}

func applyBinding(node interface{}, pointer []PathSegment, enum DynamicEnum) {
	if len(pointer) == 0 {
		return
	}
	seg := pointer[0]
	rest := pointer[1:]

	if seg.ArrayElement {
		list, ok := node.([]interface{})
		if !ok {
			return
		}
		for i, elem := range list {
			if len(rest) == 0 {
				if code, ok := elem.(string); ok {
					if literal, ok := enum.Literal(code); ok {
						list[i] = literal
					}
				}
				continue
			}
			applyBinding(elem, rest, enum)
		}
		return
	}

	obj, ok := node.(map[string]interface{})
	if !ok {
		return
	}
	val, present := obj[seg.Property]
	if !present {
		return
	}
	if len(rest) == 0 {
		if code, ok := val.(string); ok {
			if literal, ok := enum.Literal(code); ok {
				obj[seg.Property] = literal
			}
		}
		return
	}
	applyBinding(val, rest, enum)
}
