package nn

// NamedParameter pairs a parameter with its fully qualified, dotted
// name inside the owning module tree (e.g. "layers.0.self_attn.linear_query.weight").
type NamedParameter struct {
	Name  string
	Param *Parameter
}

// Module is the base interface for parameter-carrying components.
//
// Modules expose their trainable parameters both as a flat ordered
// slice and with qualified names; the optimizer builder uses the names
// to route parameters into learning-rate groups.
type Module interface {
	// Parameters returns all parameters of this module in a stable order.
	Parameters() []*Parameter

	// NamedParameters returns all parameters with dotted names, in the
	// same order as Parameters.
	NamedParameters() []NamedParameter
}

// prefixed re-qualifies child parameters under a parent name.
func prefixed(prefix string, params []NamedParameter) []NamedParameter {
	out := make([]NamedParameter, 0, len(params))
	for _, np := range params {
		out = append(out, NamedParameter{Name: prefix + "." + np.Name, Param: np.Param})
	}
	return out
}

func flatten(named []NamedParameter) []*Parameter {
	out := make([]*Parameter, 0, len(named))
	for _, np := range named {
		out = append(out, np.Param)
	}
	return out
}
