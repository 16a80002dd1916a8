// Package classify implements the per-row routing decision of the batch:
// whether a spreadsheet row is ignored, skipped, or processed.
package classify

import (
	"strconv"
	"strings"

	"markmailer/core/sheet"
)

// Kind is the routing decision for one row.
type Kind int

const (
	// Process routes the row through rendering and, when mailing, delivery.
	Process Kind = iota
	// Ignore drops the row with no output at all, not even a log line.
	Ignore
	// SkipInvalid drops the row because of a bad student number or email.
	SkipInvalid
	// SkipFiltered drops the row because it is not in the inclusion filter.
	SkipFiltered
)

// Result carries the decision and, for skips, the reason used for logging.
type Result struct {
	Kind   Kind
	Reason string
}

// Student numbers below this are treated as malformed data rather than
// real identifiers.
const minStudentNumber = 10000

// Classify decides how the sequencer handles a row. First match wins:
//
//  1. An unparsable or too-small student number marks the row invalid; when
//     both name cells are also empty the row is a wholly blank trailer and
//     is ignored outright.
//  2. When mailing is active, an email cell without "@" marks the row
//     invalid. PDF-only runs never validate email syntax.
//  3. A non-nil inclusion filter that does not contain the trimmed student
//     number filters the row out.
func Classify(row sheet.Row, cols sheet.ColumnMap, filter map[string]struct{}, mailEnabled bool) Result {
	number := strings.TrimSpace(row.Cell(cols.StudentNumber))
	n, err := strconv.Atoi(number)
	if err != nil || n < minStudentNumber {
		if row.Cell(cols.FirstName) == "" && row.Cell(cols.LastName) == "" {
			return Result{Kind: Ignore}
		}
		return Result{Kind: SkipInvalid, Reason: "invalid student number"}
	}
	if mailEnabled && !strings.Contains(row.Cell(cols.Email), "@") {
		return Result{Kind: SkipInvalid, Reason: "invalid email address"}
	}
	if filter != nil {
		if _, ok := filter[number]; !ok {
			return Result{Kind: SkipFiltered, Reason: "not in inclusion filter"}
		}
	}
	return Result{Kind: Process}
}

// ParseIDFilter builds the inclusion filter from a comma-separated list of
// student numbers. Entries are trimmed so that membership testing matches
// the trimmed student-number key. An empty list means no filter.
func ParseIDFilter(list string) map[string]struct{} {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	filter := make(map[string]struct{})
	for _, id := range strings.Split(list, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			filter[id] = struct{}{}
		}
	}
	return filter
}
