package spec

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// ParseType converts an HCL type expression such as `string`,
// `list(string)` or `object({ docker = bool })` into a cty.Type.
// An empty expression means `any`.
func ParseType(src string) (cty.Type, error) {
	if src == "" {
		return cty.DynamicPseudoType, nil
	}
	e, diags := hclsyntax.ParseExpression([]byte(src), "type", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("invalid type expression %q: %s", src, diags.Error())
	}
	return typeExprToCtyType(e)
}

func typeExprToCtyType(e hclsyntax.Expression) (cty.Type, error) {
	switch v := e.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return cty.NilType, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		switch name := v.Traversal.RootName(); name {
		case "string":
			return cty.String, nil
		case "number":
			return cty.Number, nil
		case "bool":
			return cty.Bool, nil
		case "any":
			return cty.DynamicPseudoType, nil
		default:
			return cty.NilType, fmt.Errorf("unknown primitive type %q", name)
		}

	case *hclsyntax.FunctionCallExpr:
		if len(v.Args) != 1 {
			return cty.NilType, fmt.Errorf("type constructor %s() requires exactly one argument, got %d", v.Name, len(v.Args))
		}
		if v.Name == "object" {
			return objectType(v.Args[0])
		}

		elem, err := typeExprToCtyType(v.Args[0])
		if err != nil {
			return cty.NilType, err
		}
		switch v.Name {
		case "list":
			return cty.List(elem), nil
		case "map":
			return cty.Map(elem), nil
		case "set":
			return cty.Set(elem), nil
		default:
			return cty.NilType, fmt.Errorf("unknown type constructor %q", v.Name)
		}

	default:
		return cty.NilType, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

func objectType(arg hclsyntax.Expression) (cty.Type, error) {
	cons, ok := arg.(*hclsyntax.ObjectConsExpr)
	if !ok {
		return cty.NilType, fmt.Errorf("object() requires an attribute map such as object({ name = string })")
	}
	attrs := make(map[string]cty.Type, len(cons.Items))
	for _, item := range cons.Items {
		name := hcl.ExprAsKeyword(item.KeyExpr)
		if name == "" {
			return cty.NilType, fmt.Errorf("object attribute names must be bare identifiers")
		}
		if _, dup := attrs[name]; dup {
			return cty.NilType, fmt.Errorf("duplicate object attribute %q", name)
		}
		ty, err := typeExprToCtyType(item.ValueExpr)
		if err != nil {
			return cty.NilType, fmt.Errorf("attribute %q: %w", name, err)
		}
		attrs[name] = ty
	}
	return cty.Object(attrs), nil
}

// IsSequence reports whether ty is an ordered collection usable as a loop
// source.
func IsSequence(ty cty.Type) bool {
	return ty == cty.DynamicPseudoType || ty.IsListType() || ty.IsTupleType()
}
