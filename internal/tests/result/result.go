// Package result defines the classified outcomes of test builds and runs.
//
// An outcome starts as Success or Failure and is reclassified by the test
// builder: negative tests invert, and known-broken configurations map
// Failure to ExpectedFailure and Success to UnexpectedSuccess.
package result

import "fmt"

// Test is the originating test of a result. Defined here as a minimal
// interface to keep result free of the case model.
type Test interface {
	Name() string
	String() string
}

// TestResult is one classified outcome. Skipped results are neither passed
// nor failed.
type TestResult interface {
	Test() Test
	Passed() bool
	Failed() bool
	String() string
}

// Success is a passing outcome.
type Success struct {
	test Test
}

// NewSuccess creates a Success for the given test.
func NewSuccess(test Test) Success {
	return Success{test: test}
}

func (r Success) Test() Test   { return r.test }
func (r Success) Passed() bool { return true }
func (r Success) Failed() bool { return false }
func (r Success) String() string {
	return fmt.Sprintf("PASS %s", r.test)
}

// Failure is a failing outcome with a captured message. ReproCmd, when set,
// is the command a developer can run to reproduce the failure.
type Failure struct {
	test     Test
	Message  string
	ReproCmd string
}

// NewFailure creates a Failure with the given message.
func NewFailure(test Test, message string) Failure {
	return Failure{test: test, Message: message}
}

// NewFailureWithRepro creates a Failure carrying a reproduction command.
func NewFailureWithRepro(test Test, message, reproCmd string) Failure {
	return Failure{test: test, Message: message, ReproCmd: reproCmd}
}

func (r Failure) Test() Test   { return r.test }
func (r Failure) Passed() bool { return false }
func (r Failure) Failed() bool { return true }
func (r Failure) String() string {
	repro := ""
	if r.ReproCmd != "" {
		repro = " " + r.ReproCmd
	}
	return fmt.Sprintf("FAIL %s:%s\n%s", r.test, repro, r.Message)
}

// Skipped records a test that was never built or run, with the reason.
type Skipped struct {
	test   Test
	Reason string
}

// NewSkipped creates a Skipped result.
func NewSkipped(test Test, reason string) Skipped {
	return Skipped{test: test, Reason: reason}
}

func (r Skipped) Test() Test   { return r.test }
func (r Skipped) Passed() bool { return false }
func (r Skipped) Failed() bool { return false }
func (r Skipped) String() string {
	return fmt.Sprintf("SKIP %s: %s", r.test, r.Reason)
}

// ExpectedFailure is a Failure reclassified because the (test, config) pair
// is known broken; Bug tracks the fix.
type ExpectedFailure struct {
	test         Test
	Message      string
	BrokenConfig string
	Bug          string
}

// NewExpectedFailure creates an ExpectedFailure.
func NewExpectedFailure(test Test, message, brokenConfig, bug string) ExpectedFailure {
	return ExpectedFailure{test: test, Message: message, BrokenConfig: brokenConfig, Bug: bug}
}

func (r ExpectedFailure) Test() Test   { return r.test }
func (r ExpectedFailure) Passed() bool { return true }
func (r ExpectedFailure) Failed() bool { return false }
func (r ExpectedFailure) String() string {
	return fmt.Sprintf("KNOWN FAIL %s: known failure for %s (%s): %s",
		r.test, r.BrokenConfig, r.Bug, r.Message)
}

// UnexpectedSuccess is a Success reclassified because the (test, config)
// pair was marked broken yet the test passed; the marking is stale or wrong.
type UnexpectedSuccess struct {
	test         Test
	BrokenConfig string
	Bug          string
}

// NewUnexpectedSuccess creates an UnexpectedSuccess.
func NewUnexpectedSuccess(test Test, brokenConfig, bug string) UnexpectedSuccess {
	return UnexpectedSuccess{test: test, BrokenConfig: brokenConfig, Bug: bug}
}

func (r UnexpectedSuccess) Test() Test   { return r.test }
func (r UnexpectedSuccess) Passed() bool { return false }
func (r UnexpectedSuccess) Failed() bool { return true }
func (r UnexpectedSuccess) String() string {
	return fmt.Sprintf("SHOULD FAIL %s: unexpected success for %s (%s)",
		r.test, r.BrokenConfig, r.Bug)
}
