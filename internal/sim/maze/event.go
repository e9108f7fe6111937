package maze

import "sort"

// Event is a subject-predicate-object-description tuple observable at a
// tile. Object and Description may be empty. Identity is full-tuple
// equality; events are plain values with no lifecycle of their own.
type Event struct {
	Subject     string `json:"subject"`
	Predicate   string `json:"predicate"`
	Object      string `json:"object"`
	Description string `json:"description"`
}

func (e Event) less(o Event) bool {
	if e.Subject != o.Subject {
		return e.Subject < o.Subject
	}
	if e.Predicate != o.Predicate {
		return e.Predicate < o.Predicate
	}
	if e.Object != o.Object {
		return e.Object < o.Object
	}
	return e.Description < o.Description
}

// Pattern matches events by a prefix of specified fields; unspecified
// trailing fields are wildcards. A zero-field pattern matches everything.
// Patterns are the removal-side counterpart of Event: partial tuples are
// never stored, only matched against.
type Pattern struct {
	fields [4]string
	n      int
}

// PatternOf builds a pattern from up to four leading fields
// (subject, predicate, object, description). Extra fields are ignored.
func PatternOf(fields ...string) Pattern {
	var p Pattern
	for i, f := range fields {
		if i >= len(p.fields) {
			break
		}
		p.fields[i] = f
		p.n = i + 1
	}
	return p
}

// Len reports how many leading fields the pattern specifies.
func (p Pattern) Len() int { return p.n }

// Matches reports whether every specified field equals the event's
// corresponding component.
func (p Pattern) Matches(e Event) bool {
	got := [4]string{e.Subject, e.Predicate, e.Object, e.Description}
	for i := 0; i < p.n; i++ {
		if p.fields[i] != got[i] {
			return false
		}
	}
	return true
}

// sortedEvents snapshots a tile's event set in lexicographic tuple order.
// The fixed order is what makes perception deterministic: Go map iteration
// is randomized, and downstream ranking breaks ties on enumeration order.
func sortedEvents(set map[Event]struct{}) []Event {
	out := make([]Event, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
