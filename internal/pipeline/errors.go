package pipeline

import "fmt"

// UsageError marks a caller mistake: bad arguments, missing directories,
// an ambiguous fuzzer-name match. Usage errors are never retried.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// usagef builds a UsageError from a format string.
func usagef(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// EnvError marks a broken environment, typically a required external tool
// that cannot be found. Like usage errors, these fail immediately.
type EnvError struct {
	Msg string
	Err error
}

func (e *EnvError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *EnvError) Unwrap() error { return e.Err }

// StepError is a fatal failure of one pipeline step. It carries what the
// user needs to act: the step that failed, the tail of its log, and the
// exact command to re-invoke once the cause is fixed — the persisted
// checkpoint makes that invocation resume instead of restart.
type StepError struct {
	Step    int
	Name    string
	LogTail string
	Resume  string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Step, e.Name, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
