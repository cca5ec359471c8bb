package route

import "strconv"

// Op is the shared six-operator comparator used by every condition leaf.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// CompareInt applies the operator to two integers.
func (op Op) CompareInt(a, b int) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}

// CompareFloat applies the operator to two floats.
func (op Op) CompareFloat(a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}

// Condition is the closed predicate union evaluated against a routing
// context. Adding a kind without handling it in Eval is a compile-time
// error by construction: every kind is a distinct struct and Eval's type
// switch has no default success path.
type Condition interface {
	isCondition()
}

// FlagCondition compares a run flag value. When both sides parse as
// integers the comparison is numeric; otherwise only eq/neq apply, on the
// raw strings.
type FlagCondition struct {
	Key   string
	Op    Op
	Value string
}

// ThresholdCondition compares a named numeric context field (sleight,
// transitions, party_size, round, party_deaths, party_strength).
type ThresholdCondition struct {
	Field string
	Op    Op
	Value int
}

// ItemCondition compares the count of a named inventory item, or the
// derived legendary_count field.
type ItemCondition struct {
	Name  string
	Op    Op
	Count int
}

// LegendaryCountField is the derived item field counting legendary items.
const LegendaryCountField = "legendary_count"

// StatCondition compares an actor stat; hp_percentage and focus_percentage
// are derived from live ratios.
type StatCondition struct {
	Stat  string
	Op    Op
	Value int
}

// ChoiceHistoryCondition compares a named aggregate over tagged prior
// choices in the audit log (chaos_count, moral_score).
type ChoiceHistoryCondition struct {
	Aggregate string
	Op        Op
	Value     int
}

// ClassCondition matches the actor's character class.
type ClassCondition struct {
	Class string
}

// KarmaCondition compares the signed karma alignment.
type KarmaCondition struct {
	Op    Op
	Value int
}

// RoleCondition matches the actor's selected role.
type RoleCondition struct {
	Role string
}

// HistoryCounterCondition compares a named interaction counter scanned from
// the audit log.
type HistoryCounterCondition struct {
	Counter string
	Op      Op
	Value   int
}

// AllCondition is satisfied when every sub-condition is.
type AllCondition struct {
	Conditions []Condition
}

// AnyCondition is satisfied when at least one sub-condition is.
type AnyCondition struct {
	Conditions []Condition
}

func (FlagCondition) isCondition()           {}
func (ThresholdCondition) isCondition()      {}
func (ItemCondition) isCondition()           {}
func (StatCondition) isCondition()           {}
func (ChoiceHistoryCondition) isCondition()  {}
func (ClassCondition) isCondition()          {}
func (KarmaCondition) isCondition()          {}
func (RoleCondition) isCondition()           {}
func (HistoryCounterCondition) isCondition() {}
func (AllCondition) isCondition()            {}
func (AnyCondition) isCondition()            {}

// Eval evaluates a condition against the context. Unknown aggregate or
// field names evaluate to false rather than erroring; routing must never
// abort an action resolution.
func Eval(cond Condition, ctx *Context) bool {
	switch c := cond.(type) {
	case FlagCondition:
		return evalFlag(c, ctx)
	case ThresholdCondition:
		if c.Field == FieldPartyStrength {
			return c.Op.CompareFloat(ctx.PartyStrength, float64(c.Value))
		}
		return c.Op.CompareInt(ctx.thresholdField(c.Field), c.Value)
	case ItemCondition:
		return c.Op.CompareInt(ctx.itemCount(c.Name), c.Count)
	case StatCondition:
		value, ok := ctx.statField(c.Stat)
		return ok && c.Op.CompareInt(value, c.Value)
	case ChoiceHistoryCondition:
		value, ok := ctx.History.aggregate(c.Aggregate)
		return ok && c.Op.CompareInt(value, c.Value)
	case ClassCondition:
		return ctx.Class == c.Class
	case KarmaCondition:
		return c.Op.CompareInt(ctx.History.MoralScore, c.Value)
	case RoleCondition:
		return ctx.Role == c.Role
	case HistoryCounterCondition:
		return c.Op.CompareInt(ctx.History.Counters[c.Counter], c.Value)
	case AllCondition:
		for _, sub := range c.Conditions {
			if !Eval(sub, ctx) {
				return false
			}
		}
		return true
	case AnyCondition:
		for _, sub := range c.Conditions {
			if Eval(sub, ctx) {
				return true
			}
		}
		return false
	}
	return false
}

func evalFlag(c FlagCondition, ctx *Context) bool {
	raw := ctx.Flags[c.Key]
	left, leftErr := strconv.Atoi(raw)
	right, rightErr := strconv.Atoi(c.Value)
	if leftErr == nil && rightErr == nil {
		return c.Op.CompareInt(left, right)
	}
	switch c.Op {
	case OpEq:
		return raw == c.Value
	case OpNeq:
		return raw != c.Value
	}
	return false
}
