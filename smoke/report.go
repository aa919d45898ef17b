package smoke

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/tkmct/substrate-smoke/substrate"
)

// ErrOversizedCode is wrapped by Report.Assert when any account code exceeds
// the size limit.
var ErrOversizedCode = errors.New("failed account codes (too long)")

// Report is the outcome of one code size scan.
type Report struct {
	Anchor      substrate.BlockAnchor
	KeysFound   int
	Checked     int
	Largest     int
	MaxCodeSize int
	Failures    []FailureRecord
}

// Assert passes iff no account code exceeded the limit. The error lists every
// offending account.
func (r *Report) Assert() error {
	if len(r.Failures) == 0 {
		return nil
	}
	red := color.New(color.FgRed).SprintFunc()
	entries := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		entries = append(entries, fmt.Sprintf("accountId: %s - %s bytes", f.AccountID.Hex(), red(f.CodeSize)))
	}
	return fmt.Errorf("%w: %s", ErrOversizedCode, strings.Join(entries, ", "))
}

// CaseError annotates a failure with the suite and case that produced it.
type CaseError struct {
	Suite string
	Case  string
	Err   error
}

func (e *CaseError) Error() string {
	return e.Suite + "/" + e.Case + ": " + e.Err.Error()
}

func (e *CaseError) Unwrap() error {
	return e.Err
}
