package iu

import (
	"reflect"
	"testing"
)

func TestSetDeduplicatesAndKeepsOrder(t *testing.T) {
	s := NewSet(
		MustParse("B/1.0"),
		MustParse("A/2.0"),
		MustParse("B/1.0"),
	)

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got, want := s.Strings(), []string{"B/1.0", "A/2.0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
	if s.Add(MustParse("A/2.0")) {
		t.Error("Add of existing member reported insertion")
	}
	if !s.Contains(MustParse("A/2.0")) {
		t.Error("Contains(A/2.0) = false")
	}
	if s.Contains(MustParse("A/2.0.0")) {
		t.Error("Contains matched a different version")
	}
}

func TestSetUnionDifference(t *testing.T) {
	a := NewSet(MustParse("A/1"), MustParse("B/1"))
	b := NewSet(MustParse("B/1"), MustParse("C/1"))

	if got, want := a.Union(b).Strings(), []string{"A/1", "B/1", "C/1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Union = %v, want %v", got, want)
	}
	if got, want := a.Difference(b).Strings(), []string{"A/1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Difference = %v, want %v", got, want)
	}
	if a.Len() != 2 || b.Len() != 2 {
		t.Error("Union/Difference mutated an operand")
	}
}

func TestSetEqualIgnoresOrder(t *testing.T) {
	a := NewSet(MustParse("A/1"), MustParse("B/1"))
	b := NewSet(MustParse("B/1"), MustParse("A/1"))
	if !a.Equal(b) {
		t.Error("sets with the same members should be equal")
	}
	if a.Equal(NewSet(MustParse("A/1"))) {
		t.Error("sets of different size reported equal")
	}
}

func TestNilAndZeroSets(t *testing.T) {
	var nilSet *Set
	if nilSet.Len() != 0 || nilSet.Contains(MustParse("A/1")) || nilSet.Units() != nil {
		t.Error("nil set should behave as empty")
	}

	var zero Set
	if !zero.Add(MustParse("A/1")) || zero.Len() != 1 {
		t.Error("zero Set should accept members")
	}
}

func TestParseSet(t *testing.T) {
	s, err := ParseSet([]string{"A/1.0", "A/1.0", "B/2"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	if _, err := ParseSet([]string{"A/1.0", "bad"}); err == nil {
		t.Error("expected error for malformed member")
	}
}
