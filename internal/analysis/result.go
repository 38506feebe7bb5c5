package analysis

import "fmt"

// Status tags the outcome of a single call to the AI provider.
type Status int

const (
	StatusSucceeded Status = iota
	StatusRateLimited
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// Result is what an Analyzer returns instead of an error, so the retry
// loop can branch on the tag alone.
type Result struct {
	Status Status
	Text   string
	Err    error
}

// Succeeded wraps the text returned by the provider. Empty text is still a
// success; the caller substitutes a fallback description.
func Succeeded(text string) Result {
	return Result{Status: StatusSucceeded, Text: text}
}

// RateLimited marks an HTTP 429 answer.
func RateLimited(err error) Result {
	return Result{Status: StatusRateLimited, Err: err}
}

// Failed marks any other fault.
func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// FromCall converts a provider call into a Result using the provider's own
// rate-limit test.
func FromCall(text string, err error, isRateLimited func(error) bool) Result {
	if err == nil {
		return Succeeded(text)
	}
	if isRateLimited != nil && isRateLimited(err) {
		return RateLimited(err)
	}
	return Failed(err)
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Status, r.Err)
	}
	return r.Status.String()
}
