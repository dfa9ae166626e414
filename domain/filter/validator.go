package filter

import "fmt"

// Validate checks a Node tree against a Config, accumulating every problem
// found rather than stopping at the first one so a client sees all issues
// in a single response.
func Validate(n Node, cfg Config) []string {
	var errs []string
	validateNode(n, cfg, &errs, "")
	return errs
}

func validateNode(n Node, cfg Config, errs *[]string, childPath string) {
	switch n.Kind {
	case KindField:
		validateFieldNode(n, cfg, errs)
	case KindComposite:
		for _, child := range n.Children {
			validateNode(child, cfg, errs, childPath)
		}
	case KindLogical:
		if n.Logical == LogicalNot && len(n.Children) != 1 {
			*errs = append(*errs, "$not requires exactly one child")
		}
		if n.Logical != LogicalNot && len(n.Children) < 1 {
			*errs = append(*errs, fmt.Sprintf("%s requires at least one child", n.Logical))
		}
		for i, child := range n.Children {
			validateNode(child, cfg, errs, fmt.Sprintf("%s[%d]", n.Logical, i))
		}
	}
}

func validateFieldNode(n Node, cfg Config, errs *[]string) {
	if !cfg.Filterable(n.Field) {
		*errs = append(*errs, fmt.Sprintf("field %q is not filterable", n.Field))
		return
	}
	for _, ov := range n.Ops {
		if !cfg.Allowed(n.Field, ov.Op) {
			*errs = append(*errs, fmt.Sprintf("field %q: operator %q is not allowed", n.Field, ov.Op))
			continue
		}
		spec, _ := LookupOperator(string(ov.Op))
		if err := ValidateValue(spec, ov.Value); err != nil {
			*errs = append(*errs, fmt.Sprintf("field %q: %s", n.Field, err))
		}
	}
}
