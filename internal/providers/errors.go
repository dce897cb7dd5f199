package providers

import "strings"

// ErrorType buckets an embedding provider failure for logging and failover
// decisions.
type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorInput     ErrorType = "input"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
)

var errorPatterns = []struct {
	typ      ErrorType
	keywords []string
}{
	{ErrorQuota, []string{"quota", "credit", "insufficient_quota", "billing"}},
	{ErrorRate, []string{"rate", "429", "too many requests"}},
	{ErrorInput, []string{"too long", "maximum context", "input exceeds"}},
	{ErrorTransient, []string{"timeout", "temporarily", "unavailable", "connection reset"}},
}

// ClassifyError maps a provider error message onto an ErrorType. Anything
// unrecognized counts as permanent so callers skip to the next provider.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(msg, kw) {
				return p.typ
			}
		}
	}
	return ErrorPermanent
}
