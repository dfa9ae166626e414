package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Predicate is a translated SQL WHERE fragment (without the leading
// "WHERE") plus its positional arguments, numbered from argStart.
type Predicate struct {
	SQL  string
	Args []interface{}
}

// Translate compiles a Node tree into a Predicate against a JSONB column
// named dataCol (e.g. "data"), with the reserved primary-key field mapped to
// idCol (a plain text column) rather than a JSONB lookup. argStart is the
// first $N placeholder number to use (1 for a standalone query).
func Translate(n Node, dataCol, idCol string, argStart int) (Predicate, error) {
	b := &translateState{dataCol: dataCol, idCol: idCol, next: argStart}
	sql, err := b.node(n)
	if err != nil {
		return Predicate{}, err
	}
	if sql == "" {
		sql = "TRUE"
	}
	return Predicate{SQL: sql, Args: b.args}, nil
}

type translateState struct {
	dataCol string
	idCol   string
	next    int
	args    []interface{}
}

func (b *translateState) placeholder(v interface{}) string {
	b.args = append(b.args, v)
	p := fmt.Sprintf("$%d", b.next)
	b.next++
	return p
}

func (b *translateState) node(n Node) (string, error) {
	switch n.Kind {
	case KindField:
		return b.field(n)
	case KindComposite:
		return b.join(n.Children, "AND")
	case KindLogical:
		switch n.Logical {
		case LogicalAnd:
			return b.join(n.Children, "AND")
		case LogicalOr:
			return b.join(n.Children, "OR")
		case LogicalNor:
			inner, err := b.join(n.Children, "OR")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("NOT (%s)", inner), nil
		case LogicalNot:
			inner, err := b.node(n.Children[0])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("NOT (%s)", inner), nil
		}
	}
	return "", fmt.Errorf("filter: unhandled node kind %v", n.Kind)
}

func (b *translateState) join(children []Node, op string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		sql, err := b.node(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return "TRUE", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", nil
}

func (b *translateState) field(n Node) (string, error) {
	parts := make([]string, 0, len(n.Ops))
	for _, ov := range n.Ops {
		sql, err := b.fieldOp(n.Field, ov)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return "TRUE", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *translateState) textRef(field string) string {
	if field == PrimaryKeyField {
		return b.idCol
	}
	return fmt.Sprintf("%s->>'%s'", b.dataCol, field)
}

func (b *translateState) jsonRef(field string) string {
	if field == PrimaryKeyField {
		return b.idCol
	}
	return fmt.Sprintf("%s->'%s'", b.dataCol, field)
}

func (b *translateState) fieldOp(field string, ov OpValue) (string, error) {
	textRef := b.textRef(field)
	jsonRef := b.jsonRef(field)

	switch ov.Op {
	case OpEq:
		return fmt.Sprintf("%s = %s", textRef, b.placeholder(toText(ov.Value))), nil
	case OpNe:
		return fmt.Sprintf("%s IS DISTINCT FROM %s", textRef, b.placeholder(toText(ov.Value))), nil
	case OpGt, OpGte, OpLt, OpLte:
		sym := map[Operator]string{OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<="}[ov.Op]
		return fmt.Sprintf("(%s)::numeric %s %s", textRef, sym, b.placeholder(ov.Value)), nil
	case OpIn:
		list, _ := ov.Value.([]interface{})
		return fmt.Sprintf("%s = ANY(%s)", textRef, b.placeholder(pq.Array(toTextSlice(list)))), nil
	case OpNin:
		list, _ := ov.Value.([]interface{})
		return fmt.Sprintf("NOT (%s = ANY(%s))", textRef, b.placeholder(pq.Array(toTextSlice(list)))), nil
	case OpRegex:
		return fmt.Sprintf("%s ~ %s", textRef, b.placeholder(ov.Value)), nil
	case OpExists:
		want, _ := ov.Value.(bool)
		if field == PrimaryKeyField {
			if want {
				return fmt.Sprintf("%s IS NOT NULL", textRef), nil
			}
			return fmt.Sprintf("%s IS NULL", textRef), nil
		}
		cond := fmt.Sprintf("(%s ? '%s')", b.dataCol, field)
		if !want {
			cond = "NOT " + cond
		}
		return cond, nil
	case OpType:
		return fmt.Sprintf("jsonb_typeof(%s) = %s", jsonRef, b.placeholder(jsonTypeName(ov.Value))), nil
	case OpSize:
		return fmt.Sprintf("jsonb_array_length(%s) = %s", jsonRef, b.placeholder(ov.Value)), nil
	case OpAll:
		// Approximates $all via array containment: every element of the
		// operand must appear in the target array.
		return fmt.Sprintf("%s @> %s::jsonb", jsonRef, b.placeholder(mustJSON(ov.Value))), nil
	case OpElemMatch:
		// Approximates $elemMatch via containment of a single matching
		// element shape; full per-element sub-query matching is out of scope.
		return fmt.Sprintf("%s @> jsonb_build_array(%s::jsonb)", jsonRef, b.placeholder(mustJSON(ov.Value))), nil
	}
	return "", fmt.Errorf("filter: unhandled operator %s", ov.Op)
}

func toText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toTextSlice(list []interface{}) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = toText(v)
	}
	return out
}

// mustJSON marshals a decoded filter value back to JSON text for use in a
// ::jsonb cast. Values here always originated from json.Unmarshal/gjson, so
// marshaling cannot fail in practice.
func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// TranslateOptions compiles an Options block into an ORDER BY clause (without
// the "ORDER BY" keyword, empty if unsorted), a LIMIT value (0 means
// unbounded) and an OFFSET value.
func TranslateOptions(o Options, dataCol, idCol string) (orderBy string, limit, offset int) {
	parts := make([]string, 0, len(o.Sort))
	for _, sf := range o.Sort {
		ref := dataCol + "->>'" + sf.Field + "'"
		if sf.Field == PrimaryKeyField {
			ref = idCol
		}
		dir := "ASC"
		if sf.Direction == SortDescending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", ref, dir))
	}
	return strings.Join(parts, ", "), o.Limit, o.Skip
}

// jsonTypeName maps the DSL's numeric $type codes (BSON-style) to the
// jsonb_typeof names Postgres exposes.
func jsonTypeName(code interface{}) string {
	n, _ := code.(float64)
	switch int(n) {
	case 1:
		return "number"
	case 2:
		return "string"
	case 3:
		return "object"
	case 4:
		return "array"
	case 8:
		return "boolean"
	case 10:
		return "null"
	default:
		return "number"
	}
}
