package analysis

import "time"

// Policy bounds the retry loop around the AI provider.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	Multiplier     int
	RequestTimeout time.Duration
}

// DefaultPolicy is three attempts with 5s, 10s backoff and a 10s call timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   5 * time.Second,
		Multiplier:     2,
		RequestTimeout: 10 * time.Second,
	}
}

// RetryState counts rate-limited attempts and holds the next backoff delay.
// Attempts stays within [0, MaxAttempts].
type RetryState struct {
	Attempts int
	Delay    time.Duration
}

// Outcome is how a finished loop ended. OutcomeUnsupported marks a file
// that was never sent to the analyzer.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeExhausted
	OutcomeFailed
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeUnsupported:
		return "unsupported"
	default:
		return "failed"
	}
}

// Decision is the next step of the loop. When Retry is false, Outcome is
// final and Wait is zero.
type Decision struct {
	Retry   bool
	Wait    time.Duration
	Next    RetryState
	Outcome Outcome
}

// Start returns the state before the first attempt.
func (p Policy) Start() RetryState {
	return RetryState{Delay: p.InitialDelay}
}

// Decide maps the current state and the last result to the next step.
// Only a rate-limited result can lead to a retry.
func (p Policy) Decide(state RetryState, res Result) Decision {
	switch res.Status {
	case StatusSucceeded:
		return Decision{Next: state, Outcome: OutcomeSucceeded}
	case StatusRateLimited:
		attempts := state.Attempts + 1
		if attempts < p.maxAttempts() {
			return Decision{
				Retry: true,
				Wait:  state.Delay,
				Next:  RetryState{Attempts: attempts, Delay: state.Delay * time.Duration(p.multiplier())},
			}
		}
		return Decision{Next: RetryState{Attempts: p.maxAttempts(), Delay: state.Delay}, Outcome: OutcomeExhausted}
	default:
		return Decision{Next: state, Outcome: OutcomeFailed}
	}
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) multiplier() int {
	if p.Multiplier < 1 {
		return 1
	}
	return p.Multiplier
}
