package digest

// Session selection operators for Filter.
const (
	OperatorAnd = "AND"
	OperatorOr  = "OR"
)

// Filter narrows an availability matrix the way the dashboard's advanced
// filtering does. Sessions selects which sessions to keep; with OperatorOr a
// group matches when its session is any of the selected ones, with
// OperatorAnd a subject is kept only when every selected session is present
// for that subject and matches the status filter. Statuses maps variable
// names to the status each matching group must have for that variable.
type Filter struct {
	Sessions []string          `json:"sessions,omitempty"`
	Operator string            `json:"operator,omitempty"`
	Statuses map[string]string `json:"statuses,omitempty"`
}

// Empty reports whether the filter would keep everything.
func (f Filter) Empty() bool {
	return len(f.Sessions) == 0 && len(f.Statuses) == 0
}

// Apply returns a new matrix containing only matching groups. The input
// matrix is never mutated. Group and cell ordering is inherited from the
// input, so the result stays deterministic.
func (f Filter) Apply(m *AvailabilityMatrix) *AvailabilityMatrix {
	out := &AvailabilityMatrix{SchemaName: m.SchemaName, Variables: m.Variables}
	if f.Empty() {
		out.Groups = m.Groups
		return out
	}

	selected := make(map[string]struct{}, len(f.Sessions))
	for _, s := range f.Sessions {
		selected[s] = struct{}{}
	}

	matches := func(g *Group) bool {
		if len(selected) > 0 {
			if _, ok := selected[g.Session]; !ok {
				return false
			}
		}
		for variable, want := range f.Statuses {
			got := ""
			for _, c := range g.Cells {
				if c.Variable == variable {
					got = c.Status
					break
				}
			}
			if got != want {
				return false
			}
		}
		return true
	}

	var kept []Group
	matched := make(map[string]map[string]struct{}) // subject → matched sessions
	for i := range m.Groups {
		g := &m.Groups[i]
		if !matches(g) {
			continue
		}
		kept = append(kept, *g)
		if matched[g.Subject] == nil {
			matched[g.Subject] = make(map[string]struct{})
		}
		matched[g.Subject][g.Session] = struct{}{}
	}

	if len(selected) == 0 || f.Operator == OperatorOr {
		out.Groups = kept
		return out
	}

	// AND is the default operator: every selected session must be present
	// and matching for the subject to survive.
	for _, g := range kept {
		complete := true
		for s := range selected {
			if _, ok := matched[g.Subject][s]; !ok {
				complete = false
				break
			}
		}
		if complete {
			out.Groups = append(out.Groups, g)
		}
	}
	return out
}
