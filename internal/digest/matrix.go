package digest

import "sort"

// Cell is one variable's availability status within a subject-session group.
type Cell struct {
	Variable string `json:"variable"`
	Status   string `json:"status"`
}

// Group holds all statuses observed for one (subject, session) pair.
type Group struct {
	Subject string `json:"subject"`
	Session string `json:"session"`
	Cells   []Cell `json:"cells"`
}

// AvailabilityMatrix is the derived subject × variable availability grid.
// Groups are ordered by subject then session, cells by variable, all
// ascending lexicographic, so the same Dataset always serializes to a
// byte-identical matrix.
type AvailabilityMatrix struct {
	SchemaName string   `json:"schema"`
	Variables  []string `json:"variables"`
	Groups     []Group  `json:"groups"`
}

// BuildAvailability derives the availability matrix from a validated
// dataset. Should duplicate (subject, session, variable) triples ever reach
// this point, the last-seen record wins; that is deliberate, documented
// behavior rather than silent data loss.
func BuildAvailability(d *Dataset) *AvailabilityMatrix {
	type groupKey struct{ subject, session string }

	groups := make(map[groupKey]map[string]string)
	varSet := make(map[string]struct{})

	for _, rec := range d.Records {
		k := groupKey{rec.Subject, rec.Session}
		cells := groups[k]
		if cells == nil {
			cells = make(map[string]string)
			groups[k] = cells
		}
		cells[rec.Variable] = rec.Status // last-seen wins
		varSet[rec.Variable] = struct{}{}
	}

	m := &AvailabilityMatrix{SchemaName: d.SchemaName}

	for v := range varSet {
		m.Variables = append(m.Variables, v)
	}
	sort.Strings(m.Variables)

	for k, cells := range groups {
		g := Group{Subject: k.subject, Session: k.session}
		for v, status := range cells {
			g.Cells = append(g.Cells, Cell{Variable: v, Status: status})
		}
		sort.Slice(g.Cells, func(i, j int) bool { return g.Cells[i].Variable < g.Cells[j].Variable })
		m.Groups = append(m.Groups, g)
	}
	sort.Slice(m.Groups, func(i, j int) bool {
		if m.Groups[i].Subject != m.Groups[j].Subject {
			return m.Groups[i].Subject < m.Groups[j].Subject
		}
		return m.Groups[i].Session < m.Groups[j].Session
	})

	return m
}

// Status returns the availability status for one (subject, session,
// variable) coordinate.
func (m *AvailabilityMatrix) Status(subject, session, variable string) (string, bool) {
	for i := range m.Groups {
		g := &m.Groups[i]
		if g.Subject != subject || g.Session != session {
			continue
		}
		for _, c := range g.Cells {
			if c.Variable == variable {
				return c.Status, true
			}
		}
	}
	return "", false
}

// Subjects returns the distinct subjects in group order.
func (m *AvailabilityMatrix) Subjects() []string {
	var out []string
	for i := range m.Groups {
		if len(out) == 0 || out[len(out)-1] != m.Groups[i].Subject {
			out = append(out, m.Groups[i].Subject)
		}
	}
	return out
}

// Sessions returns the distinct sessions, ascending.
func (m *AvailabilityMatrix) Sessions() []string {
	set := make(map[string]struct{})
	for i := range m.Groups {
		set[m.Groups[i].Session] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
