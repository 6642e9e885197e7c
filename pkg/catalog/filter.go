package catalog

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/entrhq/catalogsync/pkg/types"
)

// Filter selects items by glob patterns on their ID. Exclusions win over
// inclusions; an empty include list includes everything.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles the include and exclude patterns.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern '%s': %w", pattern, err)
		}
		f.include = append(f.include, g)
	}
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		f.exclude = append(f.exclude, g)
	}
	return f, nil
}

// Match reports whether id passes the filter.
func (f *Filter) Match(id string) bool {
	for _, g := range f.exclude {
		if g.Match(id) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(id) {
			return true
		}
	}
	return false
}

// Apply returns the items that pass the filter, in order.
func (f *Filter) Apply(items []types.Item) []types.Item {
	out := make([]types.Item, 0, len(items))
	for _, it := range items {
		if f.Match(it.ID) {
			out = append(out, it)
		}
	}
	return out
}

func (f *Filter) apply(r *Report) []types.Item {
	out := make([]types.Item, 0, len(r.Items))
	for _, it := range r.Items {
		if it.ID != "" && !f.Match(it.ID) {
			r.Issues = append(r.Issues, Issue{ItemID: it.ID, Kind: IssueFiltered, Detail: "excluded by filter"})
			continue
		}
		out = append(out, it)
	}
	return out
}
