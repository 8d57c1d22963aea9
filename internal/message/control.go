package message

import (
	"fmt"
	"strings"
)

// Control is an operator command from the presentation or API collaborators.
type Control int

const (
	PowerOn Control = iota + 1
	Start
	Stop
	HomeAxis1
	HomeAxis2
	GoToDefault
	TestLatency
)

// Controls lists every operator command in declaration order.
var Controls = []Control{PowerOn, Start, Stop, HomeAxis1, HomeAxis2, GoToDefault, TestLatency}

func (c Control) String() string {
	switch c {
	case PowerOn:
		return "power_on"
	case Start:
		return "start"
	case Stop:
		return "stop"
	case HomeAxis1:
		return "home_axis_1"
	case HomeAxis2:
		return "home_axis_2"
	case GoToDefault:
		return "move_to_default"
	case TestLatency:
		return "test_latency"
	default:
		return fmt.Sprintf("Control(%d)", int(c))
	}
}

// ParseControl converts a command name into a Control. "reset" is accepted
// as an alias for stop.
func ParseControl(value string) (Control, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "reset" {
		return Stop, nil
	}
	for _, c := range Controls {
		if c.String() == normalized {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown control command %q", value)
}
