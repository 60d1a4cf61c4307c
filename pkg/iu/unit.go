package iu

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator splits the unit name from its version.
	Separator = "/"

	// SegmentSeparator splits version segments.
	SegmentSeparator = "."
)

// ErrInvalidPrecision is returned when a precision below 1 is requested.
// A zero-segment version has no canonical form.
var ErrInvalidPrecision = errors.New("precision must be at least 1")

// MalformedUnitError reports an identifier string that is not of the form
// name/seg.seg.seg.
type MalformedUnitError struct {
	// Input is the string that failed to parse.
	Input string

	// Reason describes which rule the input broke.
	Reason string
}

// Error implements the error interface.
func (e *MalformedUnitError) Error() string {
	return fmt.Sprintf("malformed installable unit %q: %s", e.Input, e.Reason)
}

// Unit is an installable unit identifier. The zero value is not a valid unit;
// obtain units from Parse or New. Units are immutable: the version is copied on
// the way in and on the way out.
type Unit struct {
	name    string
	version []string
}

// New builds a unit from a name and version segments, applying the same rules
// as Parse.
func New(name string, version ...string) (Unit, error) {
	input := name + Separator + strings.Join(version, SegmentSeparator)
	if err := validate(input, name, version); err != nil {
		return Unit{}, err
	}
	return Unit{name: name, version: append([]string(nil), version...)}, nil
}

// Parse parses a canonical identifier string.
func Parse(s string) (Unit, error) {
	if n := strings.Count(s, Separator); n != 1 {
		return Unit{}, &MalformedUnitError{
			Input:  s,
			Reason: fmt.Sprintf("expected exactly one %q separator, found %d", Separator, n),
		}
	}

	name, versionString, _ := strings.Cut(s, Separator)
	if versionString == "" {
		return Unit{}, &MalformedUnitError{Input: s, Reason: "version is empty"}
	}

	version := strings.Split(versionString, SegmentSeparator)
	if err := validate(s, name, version); err != nil {
		return Unit{}, err
	}

	return Unit{name: name, version: version}, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Unit {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// ParseAll parses every string, failing on the first malformed entry.
func ParseAll(ss []string) ([]Unit, error) {
	units := make([]Unit, 0, len(ss))
	for i, s := range ss {
		u, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		units = append(units, u)
	}
	return units, nil
}

func validate(input, name string, version []string) error {
	if name == "" {
		return &MalformedUnitError{Input: input, Reason: "name is empty"}
	}
	if strings.Contains(name, Separator) {
		return &MalformedUnitError{Input: input, Reason: "name contains " + Separator}
	}
	if len(version) == 0 {
		return &MalformedUnitError{Input: input, Reason: "version has no segments"}
	}
	for i, segment := range version {
		// Empty segments ("1..2", "1.") would not survive a render/parse cycle.
		if segment == "" {
			return &MalformedUnitError{Input: input, Reason: fmt.Sprintf("version segment %d is empty", i)}
		}
		if strings.Contains(segment, SegmentSeparator) || strings.Contains(segment, Separator) {
			return &MalformedUnitError{Input: input, Reason: fmt.Sprintf("version segment %d contains a separator", i)}
		}
	}
	return nil
}

// Name returns the unit name.
func (u Unit) Name() string {
	return u.name
}

// Version returns a copy of the version segments.
func (u Unit) Version() []string {
	return append([]string(nil), u.version...)
}

// IsZero reports whether u is the zero Unit.
func (u Unit) IsZero() bool {
	return u.name == "" && len(u.version) == 0
}

// String renders the canonical name/seg.seg form.
func (u Unit) String() string {
	return u.name + Separator + strings.Join(u.version, SegmentSeparator)
}

// Equal reports structural equality: same name and the same full version.
func (u Unit) Equal(other Unit) bool {
	if u.name != other.name || len(u.version) != len(other.version) {
		return false
	}
	for i := range u.version {
		if u.version[i] != other.version[i] {
			return false
		}
	}
	return true
}

// Truncate returns a unit with the same name whose version keeps only the first
// n segments. Versions shorter than n are kept whole.
func (u Unit) Truncate(n int) (Unit, error) {
	if n < 1 {
		return Unit{}, ErrInvalidPrecision
	}
	if n > len(u.version) {
		n = len(u.version)
	}
	return Unit{name: u.name, version: append([]string(nil), u.version[:n]...)}, nil
}

// ApproximatelyEqual reports whether a and b are equal once both versions are
// truncated to n segments.
func ApproximatelyEqual(a, b Unit, n int) (bool, error) {
	ta, err := a.Truncate(n)
	if err != nil {
		return false, err
	}
	tb, err := b.Truncate(n)
	if err != nil {
		return false, err
	}
	return ta.Equal(tb), nil
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
