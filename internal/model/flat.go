package model

import (
	"fmt"
	"strings"
)

// FlatContext is the flattened path -> value view of an AffectContext.
//
// Building one costs a single traversal of the context; every subsequent
// gate or clause evaluation against it is a map lookup. Batch pipelines
// (vector evaluation, feasibility scans) flatten each pool context once and
// reuse the result across all prototypes and clauses.
//
// Delta values are materialized only for axes present in both the current
// and previous state. A delta lookup for any other axis reports absence.
type FlatContext struct {
	raw   map[string]float64
	delta map[string]float64
}

// Flatten builds the flattened view of ctx.
func Flatten(ctx *AffectContext) *FlatContext {
	f := &FlatContext{
		raw:   make(map[string]float64),
		delta: make(map[string]float64),
	}
	if ctx == nil {
		return f
	}
	for _, g := range []AxisGroup{GroupMood, GroupSexual, GroupTraits} {
		for name, v := range ctx.Axes(g) {
			f.raw[JoinPath(g, name)] = v
		}
	}
	if ctx.Previous != nil {
		for _, g := range []AxisGroup{GroupMood, GroupSexual, GroupTraits} {
			prev := ctx.Previous.Axes(g)
			for name, cur := range ctx.Axes(g) {
				if pv, ok := prev[name]; ok {
					f.delta[JoinPath(g, name)] = cur - pv
				}
			}
		}
	}
	return f
}

// Resolve returns the value of path under the given signal.
func (f *FlatContext) Resolve(signal Signal, path string) (float64, bool) {
	switch signal {
	case SignalDelta:
		v, ok := f.delta[path]
		return v, ok
	default:
		v, ok := f.raw[path]
		return v, ok
	}
}

// Paths returns the number of raw paths in the view. Mostly diagnostic.
func (f *FlatContext) Paths() int { return len(f.raw) }

// JoinPath builds the dotted axis path for a group and axis name.
func JoinPath(g AxisGroup, name string) string {
	return string(g) + "." + name
}

// SplitPath splits a dotted axis path into group and axis name.
// Returns an error for paths that do not name a valid group.
func SplitPath(path string) (AxisGroup, string, error) {
	i := strings.IndexByte(path, '.')
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("malformed axis path %q", path)
	}
	g := AxisGroup(path[:i])
	if !ValidGroups[g] {
		return "", "", fmt.Errorf("unknown axis group in path %q", path)
	}
	return g, path[i+1:], nil
}
