// Package wake turns the hardware's reset and wake-source codes into the
// cause that drives the refresh decision.
package wake

// Cause is why the current cycle is running.
type Cause int

const (
	// Reset is a cold boot or any reset that was not a sleep wake-up.
	Reset Cause = iota
	// Button is a wake-up triggered by the user.
	Button
	// Timer is the scheduled wake-up at the end of a sleep.
	Timer
)

func (c Cause) String() string {
	switch c {
	case Button:
		return "button"
	case Timer:
		return "timer"
	default:
		return "reset"
	}
}

// ForcesRefresh reports whether the cause alone demands a full refresh.
// User interaction and cold boots imply stale or missing state.
func (c Cause) ForcesRefresh() bool {
	return c != Timer
}

// ResetReason is the hardware reset code.
type ResetReason int

const (
	ResetUnknown ResetReason = iota
	ResetPowerOn
	ResetDeepSleep
	ResetBrownout
	ResetWatchdog
	ResetSoftware
)

func (r ResetReason) String() string {
	switch r {
	case ResetPowerOn:
		return "power_on"
	case ResetDeepSleep:
		return "deep_sleep"
	case ResetBrownout:
		return "brownout"
	case ResetWatchdog:
		return "watchdog"
	case ResetSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// Source is the hardware wake-source code, meaningful only after a
// deep-sleep reset.
type Source int

const (
	SourceUndefined Source = iota
	SourceExternal
	SourceTimer
)

func (s Source) String() string {
	switch s {
	case SourceExternal:
		return "external"
	case SourceTimer:
		return "timer"
	default:
		return "undefined"
	}
}

// Reasons is one raw reading of the wake hardware.
type Reasons struct {
	Reset  ResetReason
	Source Source
}

// Classify maps raw codes to a Cause.
func Classify(reset ResetReason, src Source) Cause {
	if reset != ResetDeepSleep {
		return Reset
	}
	switch src {
	case SourceExternal:
		return Button
	case SourceTimer:
		return Timer
	default:
		return Reset
	}
}
