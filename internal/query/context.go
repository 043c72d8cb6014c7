// Package query resolves opportunities of a unified data request into the
// variables requested from each experiment, by priority level.
package query

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error is the class of query errors.
var Error = errs.Class("query")

// Priority levels, highest first. Core holds the baseline variables every
// experiment requests.
const (
	Core      = "Core"
	High      = "High"
	Medium    = "Medium"
	Low       = "Low"
	Undefined = "Undefined"
)

// PriorityLevels lists all priority levels, highest first.
var PriorityLevels = []string{Core, High, Medium, Low}

// Capitalize returns s with its first letter upper-cased and the rest
// lower-cased.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// PriorityLevelsUpTo returns the priority levels at or above cutoff, highest
// first. The cutoff is case-insensitive.
func PriorityLevelsUpTo(cutoff string) ([]string, error) {
	i := slices.Index(PriorityLevels, Capitalize(strings.TrimSpace(cutoff)))
	if i < 0 {
		return nil, Error.New("invalid priority level cutoff %q", cutoff)
	}
	return slices.Clone(PriorityLevels[:i+1]), nil
}

func priorityRank(p string) int { return slices.Index(PriorityLevels, p) }

// Context carries the per-call state of a query: the content version being
// queried and where diagnostics go.
type Context struct {
	Version string
	Log     *zap.Logger
}

func (c Context) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

var versionRe = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?`)

// ParseVersion returns the major and minor number of a content version such
// as "v1.2" or "v1.0beta".
func ParseVersion(v string) (major, minor int, err error) {
	m := versionRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0, 0, Error.New("cannot parse content version %q", v)
	}
	major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minor, _ = strconv.Atoi(m[2])
	}
	return major, minor, nil
}

// AtLeast reports whether the context version is major.minor or later.
func (c Context) AtLeast(major, minor int) (bool, error) {
	ma, mi, err := ParseVersion(c.Version)
	if err != nil {
		return false, err
	}
	return ma > major || (ma == major && mi >= minor), nil
}

// SortFold sorts names case-insensitively, breaking ties on the exact text.
func SortFold(names []string) {
	slices.SortFunc(names, CompareFold)
}

// CompareFold orders strings case-insensitively.
func CompareFold(a, b string) int {
	if c := cmp.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}
