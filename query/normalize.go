package query

// Normalize rewrites an expression into negation normal form and flattens
// it: negations are pushed down to predicates via De Morgan and absorbed
// into the operator, and nested conjunctions/disjunctions of the same
// connective merge into their parent. Evaluation results are unchanged.
func Normalize(e Expr) Expr {
	return flatten(pushNegations(e, false))
}

// pushNegations applies De Morgan until negations sit on predicates, where
// they flip the operator.
func pushNegations(e Expr, negate bool) Expr {
	switch x := e.(type) {
	case Negation:
		return pushNegations(x.Inner, !negate)
	case Conjunction:
		out := make([]Expr, len(x))
		for i, sub := range x {
			out[i] = pushNegations(sub, negate)
		}
		if negate {
			return Disjunction(out)
		}
		return Conjunction(out)
	case Disjunction:
		out := make([]Expr, len(x))
		for i, sub := range x {
			out[i] = pushNegations(sub, negate)
		}
		if negate {
			return Conjunction(out)
		}
		return Disjunction(out)
	case Predicate:
		if negate {
			return Predicate{LHS: x.LHS, Op: x.Op.Negate(), RHS: x.RHS}
		}
		return x
	}
	return e
}

// flatten merges same-connective children and unwraps singletons.
func flatten(e Expr) Expr {
	switch x := e.(type) {
	case Conjunction:
		var out Conjunction
		for _, sub := range x {
			sub = flatten(sub)
			if nested, ok := sub.(Conjunction); ok {
				out = append(out, nested...)
				continue
			}
			out = append(out, sub)
		}
		if len(out) == 1 {
			return out[0]
		}
		return out
	case Disjunction:
		var out Disjunction
		for _, sub := range x {
			sub = flatten(sub)
			if nested, ok := sub.(Disjunction); ok {
				out = append(out, nested...)
				continue
			}
			out = append(out, sub)
		}
		if len(out) == 1 {
			return out[0]
		}
		return out
	case Negation:
		return Negation{Inner: flatten(x.Inner)}
	}
	return e
}
