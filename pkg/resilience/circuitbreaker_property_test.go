package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// A closed breaker opens exactly when the trailing run of failures reaches MaxFailures.
func TestProperty_OpensOnTrailingFailureRun(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("open iff a run of MaxFailures failures occurred", prop.ForAll(
		func(maxFailures int, outcomes []bool) bool {
			cb, _ := newTestBreaker(Settings{MaxFailures: maxFailures, ResetTimeout: time.Hour})
			run, opened := 0, false
			for _, fail := range outcomes {
				err := cb.Execute(func() error {
					if fail {
						return errDown
					}
					return nil
				})
				if opened {
					if !errors.Is(err, ErrCircuitOpen) {
						return false
					}
					continue
				}
				if fail {
					run++
				} else {
					run = 0
				}
				if run >= maxFailures {
					opened = true
				}
			}
			return (cb.State() == StateOpen) == opened
		},
		gen.IntRange(1, 6),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
