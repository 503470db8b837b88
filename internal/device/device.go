// Package device holds the in-memory model of one Android device under test:
// its identity, the scenes it declares and the default value of every
// tunable the power HAL manages.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Unconstrained is the default value meaning "not checked against a default".
const Unconstrained = "FF"

// Identity describes a device as reported by `adb devices -l`.
type Identity struct {
	Serial  string
	USB     string
	Product string
	Model   string
	Name    string
}

// Result is the verification outcome of a scene.
type Result string

const (
	Success Result = "Success"
	Failure Result = "Failure"
)

// Tunable is one sysfs file and the value a scene expects in it.
type Tunable struct {
	Path  string
	Value string
}

// Scene is a named workload profile.
type Scene struct {
	// ID is the hex scene id ("0x7f000102"), or "0" if the identifier
	// document does not list the scene.
	ID   string
	Name string

	// ConfigQuantity is the number of tunables. It stays 0 for a scene that
	// declared nothing to check.
	ConfigQuantity int
	Result         Result

	// Tunables are kept in activation/check order.
	Tunables []Tunable
}

// NewScene returns a scene seeded the way the parser starts every scene.
func NewScene(name string) *Scene {
	return &Scene{
		ID:     "0",
		Name:   name,
		Result: Success,
	}
}

// NumericID returns the scene id as the integer passed to the power service.
func (s *Scene) NumericID() (int64, error) {
	id := strings.TrimPrefix(strings.TrimPrefix(s.ID, "0x"), "0X")
	n, err := strconv.ParseInt(id, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("scene %s: invalid id %q: %w", s.Name, s.ID, err)
	}
	return n, nil
}

// AddTunable appends a tunable. ConfigQuantity is settled separately.
func (s *Scene) AddTunable(path, value string) {
	s.Tunables = append(s.Tunables, Tunable{Path: path, Value: value})
}

// Fail marks the scene as failed. Once failed a scene never goes back to Success.
func (s *Scene) Fail() {
	s.Result = Failure
}

// ResourceDefault is the default value declared for a tunable.
type ResourceDefault struct {
	Path string

	// Declared is the value from the resource document, or Unconstrained.
	Declared string

	// Baseline is the live value observed during the baseline check.
	Baseline string
	Observed bool
}

// Expected returns the value a tunable must hold once a scene is left:
// the observed baseline once the baseline check ran, the declared default before.
func (r *ResourceDefault) Expected() string {
	if r.Observed {
		return r.Baseline
	}
	return r.Declared
}

// Constrained reports whether the declared default is checked at all.
func (r *ResourceDefault) Constrained() bool {
	return r.Declared != Unconstrained
}

// Observe records the live value read during the baseline check.
func (r *ResourceDefault) Observe(value string) {
	r.Baseline = value
	r.Observed = true
}
