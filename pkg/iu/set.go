package iu

// Set is a duplicate-free collection of units that remembers insertion order.
// Membership uses structural equality; iteration order is the order in which
// units were first added, which keeps plans and logs reproducible.
type Set struct {
	units []Unit
	index map[string]int
}

// NewSet returns a set holding units, dropping duplicates.
func NewSet(units ...Unit) *Set {
	s := &Set{index: make(map[string]int, len(units))}
	for _, u := range units {
		s.Add(u)
	}
	return s
}

// ParseSet parses every string into a new set.
func ParseSet(ss []string) (*Set, error) {
	units, err := ParseAll(ss)
	if err != nil {
		return nil, err
	}
	return NewSet(units...), nil
}

// Add inserts u and reports whether it was not already present.
func (s *Set) Add(u Unit) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	// The canonical form is injective for valid units, so it doubles as the key.
	key := u.String()
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.units)
	s.units = append(s.units, u)
	return true
}

// Contains reports whether a unit equal to u is in the set.
func (s *Set) Contains(u Unit) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[u.String()]
	return ok
}

// Len returns the number of units.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.units)
}

// Units returns the members in insertion order.
func (s *Set) Units() []Unit {
	if s == nil {
		return nil
	}
	return append([]Unit(nil), s.units...)
}

// Strings returns the canonical form of every member in insertion order.
func (s *Set) Strings() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.units))
	for i, u := range s.units {
		out[i] = u.String()
	}
	return out
}

// Union returns s followed by the members of other not already in s.
func (s *Set) Union(other *Set) *Set {
	out := NewSet(s.Units()...)
	for _, u := range other.Units() {
		out.Add(u)
	}
	return out
}

// Difference returns the members of s that are not in other, in s order.
func (s *Set) Difference(other *Set) *Set {
	out := NewSet()
	for _, u := range s.Units() {
		if !other.Contains(u) {
			out.Add(u)
		}
	}
	return out
}

// Equal reports whether s and other hold the same members, ignoring order.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, u := range s.Units() {
		if !other.Contains(u) {
			return false
		}
	}
	return true
}
