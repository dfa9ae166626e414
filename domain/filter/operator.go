package filter

import "fmt"

// Operator is the symbol for a field-level filter operator.
type Operator string

const (
	OpEq        Operator = "$eq"
	OpNe        Operator = "$ne"
	OpGt        Operator = "$gt"
	OpGte       Operator = "$gte"
	OpLt        Operator = "$lt"
	OpLte       Operator = "$lte"
	OpIn        Operator = "$in"
	OpNin       Operator = "$nin"
	OpRegex     Operator = "$regex"
	OpExists    Operator = "$exists"
	OpType      Operator = "$type"
	OpSize      Operator = "$size"
	OpAll       Operator = "$all"
	OpElemMatch Operator = "$elemMatch"
)

// ValueKind classifies what shape of operand an operator requires.
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueList
	ValueNumber
	ValueString
	ValueBool
	ValueDocument
)

// Spec describes one entry of the closed operator set: the operator and the
// kind of value its operand must be.
type Spec struct {
	Operator Operator
	Value    ValueKind
}

var operatorSpecs = map[Operator]Spec{
	OpEq:        {OpEq, ValueScalar},
	OpNe:        {OpNe, ValueScalar},
	OpGt:        {OpGt, ValueScalar},
	OpGte:       {OpGte, ValueScalar},
	OpLt:        {OpLt, ValueScalar},
	OpLte:       {OpLte, ValueScalar},
	OpIn:        {OpIn, ValueList},
	OpNin:       {OpNin, ValueList},
	OpRegex:     {OpRegex, ValueString},
	OpExists:    {OpExists, ValueBool},
	OpType:      {OpType, ValueNumber},
	OpSize:      {OpSize, ValueNumber},
	OpAll:       {OpAll, ValueList},
	OpElemMatch: {OpElemMatch, ValueDocument},
}

// LookupOperator resolves an operator symbol to its spec, reporting false
// for anything outside the closed set.
func LookupOperator(raw string) (Spec, bool) {
	spec, ok := operatorSpecs[Operator(raw)]
	return spec, ok
}

// ValidateValue checks an operand against the operator's value-type
// predicate (e.g. $in requires a list, $type requires a number, $regex
// requires a string).
func ValidateValue(spec Spec, value interface{}) error {
	switch spec.Value {
	case ValueList:
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("operator %s requires a list value", spec.Operator)
		}
	case ValueNumber:
		switch value.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("operator %s requires a numeric value", spec.Operator)
		}
	case ValueString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("operator %s requires a string value", spec.Operator)
		}
	case ValueBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("operator %s requires a boolean value", spec.Operator)
		}
	case ValueDocument:
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("operator %s requires an object value", spec.Operator)
		}
	case ValueScalar:
		// any JSON scalar or list is acceptable; comparison semantics are
		// enforced at translation time, not here.
	}
	return nil
}
