package widget

import "fmt"

// Policy decides what happens to a submission made while another request
// is still in flight.
type Policy string

const (
	// PolicyRace issues every submission immediately. Each request carries
	// a token and only the completion of the most recent one is displayed.
	PolicyRace Policy = "race"

	// PolicyIgnore drops submissions made while a request is in flight.
	PolicyIgnore Policy = "ignore"

	// PolicyQueue displays the user message right away and issues the
	// request once every earlier one has completed.
	PolicyQueue Policy = "queue"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicyRace

// ParsePolicy converts a configuration value into a Policy. The empty string
// maps to DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return DefaultPolicy, nil
	case PolicyRace, PolicyIgnore, PolicyQueue:
		return p, nil
	default:
		return "", fmt.Errorf("unknown submission policy %q (want race, ignore or queue)", s)
	}
}

func (p Policy) String() string {
	return string(p)
}
