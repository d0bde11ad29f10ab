package primitives

// Comparison is the operator of a filter predicate against a constant.
type Comparison int

const (
	Equal Comparison = iota
	Greater
	Less
)

// Apply evaluates "value <op> constant".
func (c Comparison) Apply(value, constant uint64) bool {
	switch c {
	case Equal:
		return value == constant
	case Greater:
		return value > constant
	case Less:
		return value < constant
	default:
		return false
	}
}

// Flip returns the comparison with its operands swapped, so that
// "constant <op> value" can be evaluated as "value <op.Flip()> constant".
func (c Comparison) Flip() Comparison {
	switch c {
	case Greater:
		return Less
	case Less:
		return Greater
	default:
		return c
	}
}

func (c Comparison) String() string {
	switch c {
	case Equal:
		return "="
	case Greater:
		return ">"
	case Less:
		return "<"
	default:
		return "UNKNOWN"
	}
}

// ParseComparison maps a single operator byte onto a Comparison.
func ParseComparison(b byte) (Comparison, bool) {
	switch b {
	case '=':
		return Equal, true
	case '>':
		return Greater, true
	case '<':
		return Less, true
	default:
		return 0, false
	}
}
