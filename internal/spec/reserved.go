package spec

import "github.com/zclconf/go-cty/cty"

// PackType is the type of the `pack` variable.
var PackType = cty.Object(map[string]cty.Type{
	"name":    cty.String,
	"version": cty.String,
})

// LoopType is the type of the `loop` variable inside looped descriptors.
var LoopType = cty.Object(map[string]cty.Type{
	"index":  cty.Number,
	"length": cty.Number,
	"first":  cty.Bool,
	"last":   cty.Bool,
})

// PackValue builds the `pack` variable.
func PackValue(name, version string) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"name":    cty.StringVal(name),
		"version": cty.StringVal(version),
	})
}

// LoopValue builds the `loop` variable for element index of length.
func LoopValue(index, length int) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"index":  cty.NumberIntVal(int64(index)),
		"length": cty.NumberIntVal(int64(length)),
		"first":  cty.BoolVal(index == 0),
		"last":   cty.BoolVal(index == length-1),
	})
}

// ElementType returns the element type of a sequence type, or
// cty.DynamicPseudoType when elements are heterogeneous or unknown.
func ElementType(ty cty.Type) cty.Type {
	switch {
	case ty.IsListType():
		return ty.ElementType()
	case ty.IsTupleType():
		elems := ty.TupleElementTypes()
		if len(elems) == 0 {
			return cty.DynamicPseudoType
		}
		for _, e := range elems[1:] {
			if !e.Equals(elems[0]) {
				return cty.DynamicPseudoType
			}
		}
		return elems[0]
	default:
		return cty.DynamicPseudoType
	}
}
