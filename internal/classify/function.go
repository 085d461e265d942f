package classify

import (
	"strings"

	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/registry"
)

// Name prefixes the VM uses to decorate exposed callables.
const (
	PrefixOperator = "__op_"
	PrefixCtor     = "__ctor__"
	PrefixGetter   = "__get_"
	PrefixSetter   = "__set_"
)

// instanceParam is the name the VM gives the receiver parameter.
const instanceParam = "instance"

// QualifiedName is the registry key of a module function.
func QualifiedName(module, function string) string {
	return module + "." + function
}

// PrefixKind classifies a function by its decorated name alone.
// Accessors with more than two parameters are indexers and classify as
// methods.
func PrefixKind(name string, parameterCount int) ir.DefType {
	switch {
	case strings.HasPrefix(name, PrefixOperator):
		return ir.DefOperator
	case strings.HasPrefix(name, PrefixCtor):
		return ir.DefCtor
	case (strings.HasPrefix(name, PrefixGetter) || strings.HasPrefix(name, PrefixSetter)) &&
		parameterCount >= 1 && parameterCount <= 2:
		return ir.DefField
	default:
		return ir.DefMethod
	}
}

// KindDefType maps a registry kind onto a defType.
func KindDefType(k registry.DefinitionKind) ir.DefType {
	switch k {
	case registry.KindMethod:
		return ir.DefMethod
	case registry.KindField:
		return ir.DefField
	case registry.KindConstructor:
		return ir.DefCtor
	case registry.KindOperator:
		return ir.DefOperator
	default:
		return ir.DefUnknown
	}
}

// FieldName strips the accessor prefix and the type suffix from an accessor
// name: "__get_Foo__SystemInt32" -> "Foo".
func FieldName(name string) string {
	rest := strings.TrimPrefix(name, PrefixGetter)
	if rest == name {
		rest = strings.TrimPrefix(name, PrefixSetter)
	}
	if i := strings.Index(rest, "__"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// MemberFlags derives isStatic and returnsVoid from a backing member.
// A function is an instance call only when its first parameter is the
// receiver typed as owner; it returns a value only when its last parameter
// flows out. A nil member yields true, true.
func MemberFlags(member *registry.Member, owner string) (isStatic, returnsVoid bool) {
	isStatic, returnsVoid = true, true
	if first, ok := member.First(); ok && owner != "" {
		if first.Name == instanceParam && first.Type == owner {
			isStatic = false
		}
	}
	if last, ok := member.Last(); ok && last.Direction == registry.DirOut {
		returnsVoid = false
	}
	return isStatic, returnsVoid
}

// Provisional is the registry-derived classification of one function.
func Provisional(sig Signature, def *registry.NodeDefinitionInfo, owner string) ir.FunctionDefinition {
	fn := ir.FunctionDefinition{Name: sig.Name, ParameterCount: sig.ParameterCount}

	kind := ir.DefUnknown
	if def != nil {
		kind = KindDefType(def.Kind)
	}
	fn.DefType = kind

	switch kind {
	case ir.DefUnknown:
		fn.OriginalName = ir.StringPtr(sig.Name)
	case ir.DefMethod, ir.DefField:
		fn.OriginalName = ir.StringPtr(defaultName(kind, sig.Name, def.Member))
		isStatic, returnsVoid := MemberFlags(def.Member, owner)
		fn.IsStatic = ir.BoolPtr(isStatic)
		fn.ReturnsVoid = ir.BoolPtr(returnsVoid)
	}
	return fn
}

// Correct applies the name-prefix rule to a provisional record and returns
// the final one. prov is never modified.
func Correct(prov ir.FunctionDefinition, def *registry.NodeDefinitionInfo, owner string) ir.FunctionDefinition {
	kind := PrefixKind(prov.Name, prov.ParameterCount)
	if kind == prov.DefType {
		return prov
	}

	fn := ir.FunctionDefinition{
		Name:           prov.Name,
		ParameterCount: prov.ParameterCount,
		DefType:        kind,
	}
	if !kind.CarriesFlags() {
		return fn
	}

	var member *registry.Member
	if def != nil {
		member = def.Member
	}
	if kind == ir.DefField {
		fn.OriginalName = ir.StringPtr(FieldName(prov.Name))
	} else {
		fn.OriginalName = ir.StringPtr(defaultName(kind, prov.Name, member))
	}

	isStatic, returnsVoid := MemberFlags(member, owner)
	fn.IsStatic = ir.BoolPtr(isStatic)
	fn.ReturnsVoid = ir.BoolPtr(returnsVoid)
	return fn
}

// Function classifies one function of moduleName.
func Function(moduleName, owner string, sig Signature, lookup *registry.Lookup) ir.FunctionDefinition {
	def := lookup.Get(QualifiedName(moduleName, sig.Name))
	return Correct(Provisional(sig, def, owner), def, owner)
}

func defaultName(kind ir.DefType, name string, member *registry.Member) string {
	if member != nil && member.Name != "" {
		return member.Name
	}
	if kind == ir.DefField {
		return FieldName(name)
	}
	return name
}
