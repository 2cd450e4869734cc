package scoring

import "strings"

// Strategy identifies the rule of the scoring ladder that produced a score.
type Strategy uint8

const (
	StrategyExact Strategy = 1 << iota
	StrategyContainment
	StrategyOverlap
	StrategyLooseOverlap
	StrategyFuzzy
	StrategyPhonetic
)

var strategyNames = []struct {
	s    Strategy
	name string
}{
	{StrategyExact, "exact"},
	{StrategyContainment, "containment"},
	{StrategyOverlap, "overlap"},
	{StrategyLooseOverlap, "loose_overlap"},
	{StrategyFuzzy, "fuzzy"},
	{StrategyPhonetic, "phonetic"},
}

// String returns the strategy's lower-case name.
func (s Strategy) String() string {
	for _, n := range strategyNames {
		if n.s == s {
			return n.name
		}
	}
	return "unknown"
}

// Set is a bitmask of enabled strategies.
type Set uint8

const (
	// Core holds the strategies that need no external algorithm. They are
	// always enabled.
	Core = Set(StrategyExact | StrategyContainment | StrategyOverlap)

	// All enables every strategy.
	All = Core | Set(StrategyLooseOverlap|StrategyFuzzy|StrategyPhonetic)
)

// Has reports whether s enables st.
func (s Set) Has(st Strategy) bool { return s&Set(st) != 0 }

// With returns s with st enabled.
func (s Set) With(st Strategy) Set { return s | Set(st) }

// Without returns s with st disabled.
func (s Set) Without(st Strategy) Set { return s &^ Set(st) }

// String lists the enabled strategies joined by "+", in ladder order.
func (s Set) String() string {
	var parts []string
	for _, n := range strategyNames {
		if s.Has(n.s) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}
