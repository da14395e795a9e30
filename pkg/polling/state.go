package polling

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Target is one repository/branch pair under observation. The Repo is a
// GitLab project identifier, either numeric or path-style. An empty Ref
// polls the client's default branch.
type Target struct {
	Repo string `json:"repo"`
	Ref  string `json:"ref"`
}

// Duration wraps time.Duration so that session state serialises as a
// duration string rather than nanoseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON implements the json.Marshaler interface.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Spec carries the caller-supplied parameters for one polling session.
type Spec struct {
	// Targets maps each repository identifier to the branch to watch.
	Targets map[string]string
	// Since is an ISO 8601 timestamp handed to the API verbatim. Empty
	// means every commit on the branch counts as new.
	Since string
	// MaxRuns bounds the number of polling cycles, and must be at least
	// one.
	MaxRuns int
	// Interval is the wait between cycles.
	Interval time.Duration
	// Filter is an optional CEL expression evaluated against each
	// commit; when set, a repository only counts as changed if some
	// commit matches.
	Filter string
}

// SessionState is everything one polling session needs to resume after
// the host suspends it. It serialises to JSON with no in-memory-only
// fields, so a stored session continues with the same attempt count and
// changed set.
type SessionState struct {
	ID       string   `json:"id"`
	Targets  []Target `json:"targets"`
	Since    string   `json:"since,omitempty"`
	Runs     int      `json:"runs"`
	MaxRuns  int      `json:"maxRuns"`
	Interval Duration `json:"interval"`
	Filter   string   `json:"filter,omitempty"`
	Changed  []string `json:"changed"`
}

// NewSession validates the spec and creates the state for a new polling
// session. Targets are ordered by repository so that cycles iterate
// deterministically.
func NewSession(s Spec) (*SessionState, error) {
	if s.MaxRuns < 1 {
		return nil, fmt.Errorf("invalid cycle budget %d: at least one run is required", s.MaxRuns)
	}
	if s.Interval <= 0 {
		return nil, fmt.Errorf("invalid interval %v: it must be positive", s.Interval)
	}
	targets := make([]Target, 0, len(s.Targets))
	for repo, ref := range s.Targets {
		targets = append(targets, Target{Repo: repo, Ref: ref})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Repo < targets[j].Repo })
	return &SessionState{
		ID:       uuid.New().String(),
		Targets:  targets,
		Since:    s.Since,
		MaxRuns:  s.MaxRuns,
		Interval: Duration{s.Interval},
		Filter:   s.Filter,
		Changed:  []string{},
	}, nil
}

// appendChanged records repo in the changed set unless it is already
// there, so the set never holds duplicates and never shrinks.
func (s *SessionState) appendChanged(repo string) {
	for _, c := range s.Changed {
		if c == repo {
			return
		}
	}
	s.Changed = append(s.Changed, repo)
}
