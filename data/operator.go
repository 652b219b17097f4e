package data

// Operator is a relational comparison operator used in predicates.
type Operator string

const (
	// OpEqual tests value equality.
	OpEqual Operator = "=="
	// OpNotEqual tests value inequality.
	OpNotEqual Operator = "!="
	// OpLess tests strict ordering.
	OpLess Operator = "<"
	// OpLessEqual tests ordering or equality.
	OpLessEqual Operator = "<="
	// OpGreater tests strict reverse ordering.
	OpGreater Operator = ">"
	// OpGreaterEqual tests reverse ordering or equality.
	OpGreaterEqual Operator = ">="
	// OpIn tests membership: element in list, substring in string,
	// address in subnet.
	OpIn Operator = "in"
	// OpNotIn is the negation of OpIn.
	OpNotIn Operator = "!in"
	// OpNi tests reverse membership ("contains").
	OpNi Operator = "ni"
	// OpNotNi is the negation of OpNi.
	OpNotNi Operator = "!ni"
)

// Negate returns the operator testing the complementary relation.
func (op Operator) Negate() Operator {
	switch op {
	case OpEqual:
		return OpNotEqual
	case OpNotEqual:
		return OpEqual
	case OpLess:
		return OpGreaterEqual
	case OpLessEqual:
		return OpGreater
	case OpGreater:
		return OpLessEqual
	case OpGreaterEqual:
		return OpLess
	case OpIn:
		return OpNotIn
	case OpNotIn:
		return OpIn
	case OpNi:
		return OpNotNi
	case OpNotNi:
		return OpNi
	}
	return op
}

// Flip returns the operator with its sides swapped, so that
// `a op b == b op.Flip() a`.
func (op Operator) Flip() Operator {
	switch op {
	case OpLess:
		return OpGreater
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreater:
		return OpLess
	case OpGreaterEqual:
		return OpLessEqual
	case OpIn:
		return OpNi
	case OpNotIn:
		return OpNotNi
	case OpNi:
		return OpIn
	case OpNotNi:
		return OpNotIn
	}
	return op
}
