package dispatch

import "strings"

// classificationRule maps an error-message substring to a failure kind
type classificationRule struct {
	substring string
	kind      FailureKind
}

// classificationTable is evaluated top to bottom; the first matching rule
// wins. Matching is case-insensitive substring containment. Order matters:
// "rate limit" must be checked before the generic catch-all, and "timeout"
// before "network" so that "network timeout" classifies as a timeout.
var classificationTable = []classificationRule{
	{"rate limit", FailureRateLimit},
	{"too many requests", FailureRateLimit},
	{"timeout", FailureTimeout},
	{"auth", FailureAuthentication},
	{"api key", FailureAuthentication},
	{"unauthorized", FailureAuthentication},
	{"network", FailureNetwork},
	{"connection", FailureNetwork},
	{"service unavailable", FailureServiceUnavailable},
	{"503", FailureServiceUnavailable},
	{"invalid response", FailureInvalidResponse},
}

// ClassifyFailure maps a raw provider error to a FailureKind by matching its
// message against the classification table. Unmatched errors classify as
// FailureAPIError.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureAPIError
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range classificationTable {
		if strings.Contains(msg, rule.substring) {
			return rule.kind
		}
	}
	return FailureAPIError
}
