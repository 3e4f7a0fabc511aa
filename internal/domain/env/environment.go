package env

import (
	"fmt"
	"strings"
)

// Environment selects which Stripe key pair and which set of stored ids an
// operation works against. It is always passed explicitly.
type Environment string

const (
	Test Environment = "test"
	Live Environment = "live"
)

func Parse(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Test):
		return Test, nil
	case string(Live):
		return Live, nil
	default:
		return "", fmt.Errorf("unknown environment %q (want test or live)", s)
	}
}

func (e Environment) Valid() bool {
	return e == Test || e == Live
}

func (e Environment) String() string {
	return string(e)
}

// FromLivemode maps the livemode flag carried by Stripe objects and events.
func FromLivemode(livemode bool) Environment {
	if livemode {
		return Live
	}
	return Test
}

func All() []Environment {
	return []Environment{Test, Live}
}
