package query

import (
	"slices"
	"strings"
)

// AllKeyword selects every opportunity.
const AllKeyword = "all"

// Selector picks opportunities by title, or all of them.
type Selector struct {
	All    bool
	Titles []string
}

// AllOpportunities selects every opportunity.
func AllOpportunities() Selector { return Selector{All: true} }

// Titles selects opportunities by exact title. Duplicates collapse.
func Titles(titles ...string) Selector {
	out := slices.Clone(titles)
	slices.Sort(out)
	return Selector{Titles: slices.Compact(out)}
}

// ParseSelector interprets command-line style values: a single "all"
// (case-insensitive) or a list of titles. No values selects nothing.
func ParseSelector(values []string) Selector {
	if len(values) == 1 && strings.EqualFold(strings.TrimSpace(values[0]), AllKeyword) {
		return AllOpportunities()
	}
	titles := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			titles = append(titles, v)
		}
	}
	return Titles(titles...)
}

// Empty reports whether the selector selects nothing.
func (s Selector) Empty() bool { return !s.All && len(s.Titles) == 0 }

func (s Selector) String() string {
	if s.All {
		return AllKeyword
	}
	return strings.Join(s.Titles, ", ")
}
