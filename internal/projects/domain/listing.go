package domain

import (
	"sort"
	"strings"
)

// SortKey selects the ordering of the project overview.
type SortKey string

const (
	SortRecent SortKey = "recent"
	SortName   SortKey = "name"
	SortClient SortKey = "client"
	SortStatus SortKey = "status"
)

// ParseSortKey defaults to SortRecent when raw is empty.
func ParseSortKey(raw string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(raw))); k {
	case "":
		return SortRecent, nil
	case SortRecent, SortName, SortClient, SortStatus:
		return k, nil
	default:
		return "", Invalid("unknown sort key %q", raw)
	}
}

// ProjectFilter is the overview's search, status filter and sort selection.
type ProjectFilter struct {
	SearchText string
	Status     *Status
	SortKey    SortKey
}

// FilterProjects applies f to items and returns a new, sorted slice.
// SearchText matches case-insensitively against the project name, the project
// type and the resolved client display name.
func FilterProjects(items []ProjectSummary, f ProjectFilter) []ProjectSummary {
	needle := strings.ToLower(strings.TrimSpace(f.SearchText))

	out := make([]ProjectSummary, 0, len(items))
	for _, it := range items {
		if f.Status != nil && it.Status != *f.Status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.Name), needle) &&
			!strings.Contains(strings.ToLower(it.Type), needle) &&
			!strings.Contains(strings.ToLower(it.ClientName), needle) {
			continue
		}
		out = append(out, it)
	}

	less := lessFor(f.SortKey)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func lessFor(key SortKey) func(a, b ProjectSummary) bool {
	recent := func(a, b ProjectSummary) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	}
	byText := func(get func(ProjectSummary) string) func(a, b ProjectSummary) bool {
		return func(a, b ProjectSummary) bool {
			x, y := strings.ToLower(get(a)), strings.ToLower(get(b))
			if x != y {
				return x < y
			}
			return recent(a, b)
		}
	}

	switch key {
	case SortName:
		return byText(func(p ProjectSummary) string { return p.Name })
	case SortClient:
		return byText(func(p ProjectSummary) string { return p.ClientName })
	case SortStatus:
		return func(a, b ProjectSummary) bool {
			if a.Status.Priority() != b.Status.Priority() {
				return a.Status.Priority() < b.Status.Priority()
			}
			return recent(a, b)
		}
	default:
		return recent
	}
}
