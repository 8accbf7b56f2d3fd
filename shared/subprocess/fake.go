package subprocess

import "context"

// Invocation records a single call made through a Fake Runner.
type Invocation struct {
	Label string
	Name  string
	Args  []string
}

// Fake is an in-memory Runner used by tests to assert the exact argv a
// component would execute, without touching the host (spec §8's testable
// properties are about the command contract, not live kernel/libvirt
// state).
type Fake struct {
	Invocations []Invocation
	// Results, keyed by label, lets a test script canned output/errors.
	Results map[string]Result
	Errs    map[string]error
}

// NewFake builds an empty Fake runner.
func NewFake() *Fake {
	return &Fake{
		Results: map[string]Result{},
		Errs:    map[string]error{},
	}
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, _ string, label, name string, args ...string) (Result, error) {
	f.Invocations = append(f.Invocations, Invocation{Label: label, Name: name, Args: append([]string(nil), args...)})
	if err, ok := f.Errs[label]; ok {
		return f.Results[label], err
	}
	return f.Results[label], nil
}
