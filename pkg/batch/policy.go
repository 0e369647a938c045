package batch

import "fmt"

// Policy selects the housekeeping applied to a record after its derivation
// fails. The set is enumerable so additional remediations can be added
// without changing driver logic.
type Policy string

const (
	// PolicyNone leaves failed records untouched.
	PolicyNone Policy = "none"
	// PolicyBlankOnFailure clears the offending field so no broken
	// reference is left behind, and persists that change.
	PolicyBlankOnFailure Policy = "blank-on-failure"
)

// ParsePolicy validates a policy name. Unknown names are a configuration
// fault and abort the run before any processing begins.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case PolicyNone, "":
		return PolicyNone, nil
	case PolicyBlankOnFailure:
		return PolicyBlankOnFailure, nil
	default:
		return "", fmt.Errorf("unknown housekeeping policy %q", name)
	}
}
