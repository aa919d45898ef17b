package smoke

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	passMark = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
)

// CheckResult represents the result of a single test case.
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail"
	Message string
}

// Results holds the outcome of every case that ran.
type Results struct {
	out    io.Writer
	Checks []CheckResult
	Passed int
	Failed int
}

// NewResults creates a Results instance printing to out.
func NewResults(out io.Writer) *Results {
	return &Results{
		out:    out,
		Checks: make([]CheckResult, 0),
	}
}

// Pass records a passing case.
func (r *Results) Pass(name, message string) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Status: "pass", Message: message})
	r.Passed++
	fmt.Fprintf(r.out, "  %s %s: %s\n", passMark("✓"), name, message)
}

// Fail records a failing case.
func (r *Results) Fail(name, message string) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Status: "fail", Message: message})
	r.Failed++
	fmt.Fprintf(r.out, "  %s %s: %s\n", failMark("✗"), name, message)
}

// Print outputs the final summary.
func (r *Results) Print() {
	fmt.Fprintln(r.out, "==========================================")
	fmt.Fprintln(r.out, "Smoke Summary")
	fmt.Fprintln(r.out, "==========================================")
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  %s   %d\n", passMark("Passed:"), r.Passed)
	fmt.Fprintf(r.out, "  %s   %d\n", failMark("Failed:"), r.Failed)
	fmt.Fprintln(r.out)

	if r.Failed == 0 {
		fmt.Fprintln(r.out, passMark("All smoke checks passed."))
	} else {
		fmt.Fprintln(r.out, failMark("Smoke checks failed. Check errors above."))
	}
	fmt.Fprintln(r.out)
}
