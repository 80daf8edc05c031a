package expr

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// ParseCondition parses a `when` clause. filename is used in diagnostics only.
func ParseCondition(src, filename string) (Expr, error) {
	syntax, diags := hclsyntax.ParseExpression([]byte(src), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid condition %q: %s", src, diags.Error())
	}
	return convert(syntax)
}

// ParseReference parses a bare field reference such as `languages` or
// `features.docker`.
func ParseReference(src, filename string) (*FieldRef, error) {
	syntax, diags := hclsyntax.ParseExpression([]byte(src), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid reference %q: %s", src, diags.Error())
	}
	e, err := convert(syntax)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", src, err)
	}
	ref, ok := e.(*FieldRef)
	if !ok {
		return nil, fmt.Errorf("invalid reference %q: must be a field name", src)
	}
	return ref, nil
}

// convert walks the HCL syntax tree and keeps only the node kinds the
// condition language allows.
func convert(e hclsyntax.Expression) (Expr, error) {
	switch v := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		return &Literal{Value: v.Val}, nil

	case *hclsyntax.TemplateExpr:
		if !v.IsStringLiteral() {
			return nil, fmt.Errorf("string interpolation is not allowed in conditions")
		}
		val, diags := v.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid string literal: %s", diags.Error())
		}
		return &Literal{Value: val}, nil

	case *hclsyntax.TemplateWrapExpr:
		return nil, fmt.Errorf("string interpolation is not allowed in conditions")

	case *hclsyntax.ScopeTraversalExpr:
		return fieldRef(v.Traversal)

	case *hclsyntax.RelativeTraversalExpr:
		ref, err := sourceRef(v.Source)
		if err != nil {
			return nil, err
		}
		return ref, appendTraversal(ref, v.Traversal)

	case *hclsyntax.IndexExpr:
		ref, err := sourceRef(v.Collection)
		if err != nil {
			return nil, err
		}
		key, err := convert(v.Key)
		if err != nil {
			return nil, err
		}
		lit, ok := key.(*Literal)
		if !ok || lit.Value.Type() != cty.String {
			return nil, fmt.Errorf("reference %s: only string keys are allowed", ref.Path())
		}
		ref.Attrs = append(ref.Attrs, lit.Value.AsString())
		return ref, nil

	case *hclsyntax.ParenthesesExpr:
		return convert(v.Expression)

	case *hclsyntax.UnaryOpExpr:
		operand, err := convert(v.Val)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case hclsyntax.OpLogicalNot:
			return &Not{Operand: operand}, nil
		case hclsyntax.OpNegate:
			lit, ok := operand.(*Literal)
			if !ok || lit.Value.Type() != cty.Number {
				return nil, fmt.Errorf("negation is only allowed on number literals")
			}
			return &Literal{Value: lit.Value.Negate()}, nil
		}
		return nil, fmt.Errorf("unsupported unary operator")

	case *hclsyntax.BinaryOpExpr:
		left, err := convert(v.LHS)
		if err != nil {
			return nil, err
		}
		right, err := convert(v.RHS)
		if err != nil {
			return nil, err
		}
		if op, ok := compareOps[v.Op]; ok {
			return &Compare{Op: op, Left: left, Right: right}, nil
		}
		switch v.Op {
		case hclsyntax.OpLogicalAnd:
			return &Logical{Op: OpAnd, Left: left, Right: right}, nil
		case hclsyntax.OpLogicalOr:
			return &Logical{Op: OpOr, Left: left, Right: right}, nil
		}
		return nil, fmt.Errorf("arithmetic operators are not allowed in conditions")

	case *hclsyntax.FunctionCallExpr:
		return nil, fmt.Errorf("function call %s() is not allowed in conditions", v.Name)

	default:
		return nil, fmt.Errorf("unsupported expression %T in condition", e)
	}
}

var compareOps = map[*hclsyntax.Operation]CompareOp{
	hclsyntax.OpEqual:              OpEqual,
	hclsyntax.OpNotEqual:           OpNotEqual,
	hclsyntax.OpLessThan:           OpLessThan,
	hclsyntax.OpLessThanOrEqual:    OpLessOrEqual,
	hclsyntax.OpGreaterThan:        OpGreaterThan,
	hclsyntax.OpGreaterThanOrEqual: OpGreaterOrEqual,
}

// fieldRef accepts `root`, `root.attr` and `root["attr"]` segments.
func fieldRef(t hcl.Traversal) (*FieldRef, error) {
	ref := &FieldRef{Root: t.RootName()}
	return ref, appendTraversal(ref, t[1:])
}

func sourceRef(e hclsyntax.Expression) (*FieldRef, error) {
	src, err := convert(e)
	if err != nil {
		return nil, err
	}
	ref, ok := src.(*FieldRef)
	if !ok {
		return nil, fmt.Errorf("unsupported expression %T in condition", e)
	}
	return ref, nil
}

func appendTraversal(ref *FieldRef, t hcl.Traversal) error {
	for _, part := range t {
		switch p := part.(type) {
		case hcl.TraverseAttr:
			ref.Attrs = append(ref.Attrs, p.Name)
		case hcl.TraverseIndex:
			if p.Key.Type() != cty.String {
				return fmt.Errorf("reference %s: only string keys are allowed", ref.Path())
			}
			ref.Attrs = append(ref.Attrs, p.Key.AsString())
		default:
			return fmt.Errorf("reference %s: unsupported traversal", ref.Path())
		}
	}
	return nil
}
