package sheet

import (
	"errors"
	"fmt"
)

// ErrInvalidColumnReference reports a column reference that is not a one or
// two letter spreadsheet-style name.
var ErrInvalidColumnReference = errors.New("invalid column reference")

// ColumnIndex converts a spreadsheet-style column reference to a zero-based
// index: "A" is 0, "Z" is 25, "AA" follows as 26, "AZ" is 51, "BA" is 52.
// This is the usual spreadsheet numbering, not a pure positional base-26
// system. Lowercase letters are accepted.
func ColumnIndex(ref string) (int, error) {
	switch len(ref) {
	case 1:
		n, ok := letterValue(ref[0])
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidColumnReference, ref)
		}
		return n, nil
	case 2:
		hi, ok1 := letterValue(ref[0])
		lo, ok2 := letterValue(ref[1])
		if !ok1 || !ok2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidColumnReference, ref)
		}
		return (hi+1)*26 + lo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidColumnReference, ref)
	}
}

func letterValue(c byte) (int, bool) {
	switch {
	case c >= 'A' && c <= 'Z':
		return int(c - 'A'), true
	case c >= 'a' && c <= 'z':
		return int(c - 'a'), true
	default:
		return 0, false
	}
}

// ColumnMap holds the resolved cell index of every logical field the
// pipeline reads. Email is -1 when no student-email column is configured,
// which is the case for PDF-only runs.
type ColumnMap struct {
	StudentNumber int
	FirstName     int
	LastName      int
	Email         int
	Criteria      []int
	Total         int
	Feedback      int
}
