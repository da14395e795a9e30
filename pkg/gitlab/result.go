package gitlab

import (
	"fmt"
)

// Outcome classifies how a commit query concluded.
type Outcome string

const (
	// OutcomeSuccess is a 200 response carrying a list of commits.
	OutcomeSuccess Outcome = "success"
	// OutcomeAPIError is a response from the API that did not carry a
	// usable commit list.
	OutcomeAPIError Outcome = "api_error"
	// OutcomeTransportError is a query that never produced an API
	// response, e.g. a timeout or connection failure.
	OutcomeTransportError Outcome = "transport_error"
)

// StatusError is recorded in place of an HTTP status when there is no
// usable one to report: non-200 API responses and transport failures.
const StatusError = 600

// Commit is a single commit as returned by the commits endpoint, decoded
// without further interpretation.
type Commit map[string]interface{}

// CommitResult is the outcome of a single commit query. A failed query is
// a value, not an error, so that callers can fold many outcomes without
// aborting on the first failure.
type CommitResult struct {
	Outcome Outcome  `json:"outcome"`
	Success bool     `json:"success"`
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Commits []Commit `json:"commits"`
}

// Changed reports whether the query succeeded and found at least one
// commit.
func (r CommitResult) Changed() bool {
	return r.Success && len(r.Commits) > 0
}

// ResultFromMap builds a CommitResult from loosely typed response fields.
// Every field must be present and correctly typed: a partial map is an
// error, never a silent default. Building twice from the same fields
// yields identical results.
func ResultFromMap(fields map[string]interface{}) (CommitResult, error) {
	outcome, err := stringField(fields, "outcome")
	if err != nil {
		return CommitResult{}, err
	}
	switch Outcome(outcome) {
	case OutcomeSuccess, OutcomeAPIError, OutcomeTransportError:
	default:
		return CommitResult{}, fmt.Errorf("unknown commit result outcome %q", outcome)
	}
	success, err := boolField(fields, "success")
	if err != nil {
		return CommitResult{}, err
	}
	status, err := intField(fields, "status")
	if err != nil {
		return CommitResult{}, err
	}
	message, err := stringField(fields, "message")
	if err != nil {
		return CommitResult{}, err
	}
	commits, err := commitsField(fields, "commits")
	if err != nil {
		return CommitResult{}, err
	}
	return CommitResult{
		Outcome: Outcome(outcome),
		Success: success,
		Status:  status,
		Message: message,
		Commits: commits,
	}, nil
}

func stringField(fields map[string]interface{}, k string) (string, error) {
	v, ok := fields[k]
	if !ok {
		return "", fmt.Errorf("commit result is missing the %q field", k)
	}
	// Successful results carry a null message.
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("commit result field %q is not a string: %v", k, v)
	}
	return s, nil
}

func boolField(fields map[string]interface{}, k string) (bool, error) {
	v, ok := fields[k]
	if !ok {
		return false, fmt.Errorf("commit result is missing the %q field", k)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("commit result field %q is not a bool: %v", k, v)
	}
	return b, nil
}

func intField(fields map[string]interface{}, k string) (int, error) {
	v, ok := fields[k]
	if !ok {
		return 0, fmt.Errorf("commit result is missing the %q field", k)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("commit result field %q is not a number: %v", k, v)
}

func commitsField(fields map[string]interface{}, k string) ([]Commit, error) {
	v, ok := fields[k]
	if !ok {
		return nil, fmt.Errorf("commit result is missing the %q field", k)
	}
	switch list := v.(type) {
	case []Commit:
		if list == nil {
			return []Commit{}, nil
		}
		return list, nil
	case []interface{}:
		commits := make([]Commit, 0, len(list))
		for _, e := range list {
			m, ok := e.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("commit result field %q contains a non-object commit: %v", k, e)
			}
			commits = append(commits, Commit(m))
		}
		return commits, nil
	}
	return nil, fmt.Errorf("commit result field %q is not a list: %v", k, v)
}
