package state

import "fmt"

// Discipline is the concurrency-control strategy of a slot.
type Discipline int

const (
	// ReadMostly slots use reader-writer locking.
	ReadMostly Discipline = iota
	// WriteHeavy slots use mutual exclusion.
	WriteHeavy
	// AtomicScalar slots hold one integer updated lock-free.
	AtomicScalar
)

// String returns the string representation of the discipline
func (d Discipline) String() string {
	switch d {
	case ReadMostly:
		return "read-mostly"
	case WriteHeavy:
		return "write-heavy"
	case AtomicScalar:
		return "atomic-scalar"
	default:
		return "unknown"
	}
}

// MarshalText renders the discipline by name in JSON and YAML output.
func (d Discipline) MarshalText() ([]byte, error) {
	if d < ReadMostly || d > AtomicScalar {
		return nil, fmt.Errorf("unknown discipline %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (d *Discipline) UnmarshalText(text []byte) error {
	for _, candidate := range []Discipline{ReadMostly, WriteHeavy, AtomicScalar} {
		if candidate.String() == string(text) {
			*d = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown discipline %q", text)
}

// AccessMode distinguishes shared from exclusive acquisitions.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
)

// String returns the string representation of the access mode
func (m AccessMode) String() string {
	if m == AccessWrite {
		return "write"
	}
	return "read"
}
