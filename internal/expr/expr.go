// Package expr implements the condition language used by manifest `when`
// clauses and the `{{ field }}` placeholders used in destination paths.
//
// Conditions are parsed with the HCL native syntax parser and converted into a
// small typed tree: literals, field references, comparisons, and boolean
// operators. Anything else (function calls, arithmetic, for expressions,
// string interpolation) is rejected at parse time. The tree is interpreted
// against a Scope; nothing in a spec or manifest is ever executed.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Scope maps root variable names to values.
type Scope map[string]cty.Value

// Types maps root variable names to their declared types. cty.DynamicPseudoType
// disables static checking below that name.
type Types map[string]cty.Type

// Expr is a node of a condition tree.
type Expr interface {
	// Eval interprets the node against scope.
	Eval(scope Scope) (cty.Value, error)

	// Check infers the result type against declared types.
	Check(types Types) (cty.Type, error)

	// References returns every field reference in the subtree, in source order.
	References() []*FieldRef

	String() string
}

// UndefinedError reports a reference to a name absent from the scope.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Name)
}

// Literal is a constant value.
type Literal struct {
	Value cty.Value
}

func (l *Literal) Eval(Scope) (cty.Value, error) { return l.Value, nil }

func (l *Literal) Check(Types) (cty.Type, error) { return l.Value.Type(), nil }

func (l *Literal) References() []*FieldRef { return nil }

func (l *Literal) String() string {
	if !l.Value.IsNull() && l.Value.Type() == cty.String {
		return strconv.Quote(l.Value.AsString())
	}
	return FormatValue(l.Value)
}

// FieldRef is a dotted reference such as `features.docker`.
type FieldRef struct {
	Root  string
	Attrs []string
}

// Path returns the dotted form of the reference.
func (f *FieldRef) Path() string {
	if len(f.Attrs) == 0 {
		return f.Root
	}
	return f.Root + "." + strings.Join(f.Attrs, ".")
}

func (f *FieldRef) String() string { return f.Path() }

func (f *FieldRef) References() []*FieldRef { return []*FieldRef{f} }

func (f *FieldRef) Eval(scope Scope) (cty.Value, error) {
	v, ok := scope[f.Root]
	if !ok {
		return cty.NilVal, &UndefinedError{Name: f.Root}
	}
	for i, attr := range f.Attrs {
		next, err := getAttr(v, attr)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%s: %w", f.prefix(i+1), err)
		}
		v = next
	}
	return v, nil
}

func (f *FieldRef) Check(types Types) (cty.Type, error) {
	ty, ok := types[f.Root]
	if !ok {
		return cty.NilType, &UndefinedError{Name: f.Root}
	}
	for i, attr := range f.Attrs {
		switch {
		case ty == cty.DynamicPseudoType:
			return cty.DynamicPseudoType, nil
		case ty.IsObjectType():
			if !ty.HasAttribute(attr) {
				return cty.NilType, &UndefinedError{Name: f.prefix(i + 1)}
			}
			ty = ty.AttributeType(attr)
		case ty.IsMapType():
			ty = ty.ElementType()
		default:
			return cty.NilType, fmt.Errorf("%s: cannot access attribute %q on %s", f.prefix(i), attr, ty.FriendlyName())
		}
	}
	return ty, nil
}

func (f *FieldRef) prefix(n int) string {
	return (&FieldRef{Root: f.Root, Attrs: f.Attrs[:n]}).Path()
}

func getAttr(v cty.Value, attr string) (cty.Value, error) {
	ty := v.Type()
	if v.IsNull() {
		// Attributes of an omitted object or map are null as well.
		switch {
		case ty.IsObjectType() && ty.HasAttribute(attr):
			return cty.NullVal(ty.AttributeType(attr)), nil
		case ty.IsMapType():
			return cty.NullVal(ty.ElementType()), nil
		}
		return cty.NilVal, fmt.Errorf("cannot access attribute %q on null", attr)
	}
	switch {
	case ty.IsObjectType():
		if !ty.HasAttribute(attr) {
			return cty.NilVal, &UndefinedError{Name: attr}
		}
		return v.GetAttr(attr), nil
	case ty.IsMapType():
		key := cty.StringVal(attr)
		if v.HasIndex(key).False() {
			return cty.NilVal, &UndefinedError{Name: attr}
		}
		return v.Index(key), nil
	default:
		return cty.NilVal, fmt.Errorf("cannot access attribute %q on %s", attr, ty.FriendlyName())
	}
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEqual          CompareOp = "=="
	OpNotEqual       CompareOp = "!="
	OpLessThan       CompareOp = "<"
	OpLessOrEqual    CompareOp = "<="
	OpGreaterThan    CompareOp = ">"
	OpGreaterOrEqual CompareOp = ">="
)

func (op CompareOp) ordering() bool {
	return op != OpEqual && op != OpNotEqual
}

// Compare compares two operands of the same type.
type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

func (c *Compare) References() []*FieldRef {
	return append(c.Left.References(), c.Right.References()...)
}

func (c *Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

func (c *Compare) Check(types Types) (cty.Type, error) {
	lt, err := c.Left.Check(types)
	if err != nil {
		return cty.NilType, err
	}
	rt, err := c.Right.Check(types)
	if err != nil {
		return cty.NilType, err
	}
	if lt == cty.DynamicPseudoType || rt == cty.DynamicPseudoType {
		return cty.Bool, nil
	}
	if c.Op.ordering() {
		if !lt.Equals(rt) || (lt != cty.Number && lt != cty.String) {
			return cty.NilType, fmt.Errorf("operator %s requires two numbers or two strings, got %s and %s", c.Op, lt.FriendlyName(), rt.FriendlyName())
		}
		return cty.Bool, nil
	}
	if !equatable(lt, rt) {
		return cty.NilType, fmt.Errorf("cannot compare %s with %s", lt.FriendlyName(), rt.FriendlyName())
	}
	return cty.Bool, nil
}

func (c *Compare) Eval(scope Scope) (cty.Value, error) {
	l, err := c.Left.Eval(scope)
	if err != nil {
		return cty.NilVal, err
	}
	r, err := c.Right.Eval(scope)
	if err != nil {
		return cty.NilVal, err
	}

	if !c.Op.ordering() {
		if l.IsNull() || r.IsNull() {
			eq := l.IsNull() == r.IsNull()
			return cty.BoolVal(eq == (c.Op == OpEqual)), nil
		}
		if !equatable(l.Type(), r.Type()) {
			return cty.NilVal, fmt.Errorf("cannot compare %s with %s in %s", l.Type().FriendlyName(), r.Type().FriendlyName(), c)
		}
		eq := l.Equals(r).True()
		return cty.BoolVal(eq == (c.Op == OpEqual)), nil
	}

	// An omitted optional field orders against nothing.
	if l.IsNull() || r.IsNull() {
		return cty.False, nil
	}
	var cmp int
	switch {
	case l.Type() == cty.Number && r.Type() == cty.Number:
		cmp = l.AsBigFloat().Cmp(r.AsBigFloat())
	case l.Type() == cty.String && r.Type() == cty.String:
		cmp = strings.Compare(l.AsString(), r.AsString())
	default:
		return cty.NilVal, fmt.Errorf("operator %s requires two numbers or two strings, got %s and %s", c.Op, l.Type().FriendlyName(), r.Type().FriendlyName())
	}

	var result bool
	switch c.Op {
	case OpLessThan:
		result = cmp < 0
	case OpLessOrEqual:
		result = cmp <= 0
	case OpGreaterThan:
		result = cmp > 0
	case OpGreaterOrEqual:
		result = cmp >= 0
	}
	return cty.BoolVal(result), nil
}

// equatable reports whether equality between the two types is meaningful.
func equatable(a, b cty.Type) bool {
	return a.Equals(b)
}

// LogicalOp is a boolean operator.
type LogicalOp string

const (
	OpAnd LogicalOp = "&&"
	OpOr  LogicalOp = "||"
)

// Logical combines two boolean operands.
type Logical struct {
	Op          LogicalOp
	Left, Right Expr
}

func (l *Logical) References() []*FieldRef {
	return append(l.Left.References(), l.Right.References()...)
}

func (l *Logical) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

func (l *Logical) Check(types Types) (cty.Type, error) {
	for _, operand := range []Expr{l.Left, l.Right} {
		ty, err := operand.Check(types)
		if err != nil {
			return cty.NilType, err
		}
		if ty != cty.Bool && ty != cty.DynamicPseudoType {
			return cty.NilType, fmt.Errorf("operator %s requires bool operands, %s is %s", l.Op, operand, ty.FriendlyName())
		}
	}
	return cty.Bool, nil
}

func (l *Logical) Eval(scope Scope) (cty.Value, error) {
	left, err := evalBool(l.Left, scope)
	if err != nil {
		return cty.NilVal, err
	}
	if l.Op == OpAnd && !left {
		return cty.False, nil
	}
	if l.Op == OpOr && left {
		return cty.True, nil
	}
	right, err := evalBool(l.Right, scope)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.BoolVal(right), nil
}

// Not negates a boolean operand.
type Not struct {
	Operand Expr
}

func (n *Not) References() []*FieldRef { return n.Operand.References() }
func (n *Not) String() string          { return "!" + n.Operand.String() }

func (n *Not) Check(types Types) (cty.Type, error) {
	ty, err := n.Operand.Check(types)
	if err != nil {
		return cty.NilType, err
	}
	if ty != cty.Bool && ty != cty.DynamicPseudoType {
		return cty.NilType, fmt.Errorf("operator ! requires a bool operand, %s is %s", n.Operand, ty.FriendlyName())
	}
	return cty.Bool, nil
}

func (n *Not) Eval(scope Scope) (cty.Value, error) {
	b, err := evalBool(n.Operand, scope)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.BoolVal(!b), nil
}

// EvalBool evaluates e and requires a bool result. A null bool, as an
// optional field left out of the spec, is false.
func EvalBool(e Expr, scope Scope) (bool, error) {
	return evalBool(e, scope)
}

func evalBool(e Expr, scope Scope) (bool, error) {
	v, err := e.Eval(scope)
	if err != nil {
		return false, err
	}
	if v.IsNull() && (v.Type() == cty.Bool || v.Type() == cty.DynamicPseudoType) {
		return false, nil
	}
	if v.IsNull() || v.Type() != cty.Bool {
		return false, fmt.Errorf("%s must evaluate to bool, got %s", e, describe(v))
	}
	return v.True(), nil
}

func describe(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	return v.Type().FriendlyName()
}

// FormatValue renders a primitive value the way it appears in paths and
// messages. Non-primitive values use their type name.
func FormatValue(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		return v.Type().FriendlyName()
	}
}
