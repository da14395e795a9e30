package polling

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/bigkevmcd/gitlab-polling/pkg/cel"
	"github.com/bigkevmcd/gitlab-polling/pkg/gitlab"
)

// Poller drives change-detection sessions against a commit lister.
//
// A session runs as a sequence of cycles. Each cycle queries every target
// once, concurrently, and folds the results into the session's changed
// set. Query failures are contained: a repository that fails a cycle is
// simply retried on the next one.
type Poller struct {
	lister gitlab.CommitLister
	log    logr.Logger
}

// New creates a Poller that queries through the provided lister.
func New(lister gitlab.CommitLister, log logr.Logger) *Poller {
	return &Poller{lister: lister, log: log}
}

// CycleResult is the decision from one polling cycle. Either the session
// is done and Changed carries the final set, which is empty when the
// budget ran out without a change, or the host should call Cycle again
// after RequeueAfter.
type CycleResult struct {
	Done         bool
	Changed      []string
	RequeueAfter time.Duration
}

// Cycle runs one fan-out round over every target and updates the session
// state. The host owns persisting the state between calls.
//
// Cancelling the context abandons the round: no results are folded, the
// changed set keeps its previous value and no terminal decision is made.
func (p *Poller) Cycle(ctx context.Context, s *SessionState) (CycleResult, error) {
	s.Runs++
	logger := p.log.WithValues("session", s.ID, "run", s.Runs, "maxRuns", s.MaxRuns)
	logger.Info("checking for changes", "targets", len(s.Targets), "since", s.Since)

	results := make([]gitlab.CommitResult, len(s.Targets))
	var wg sync.WaitGroup
	for i, target := range s.Targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			results[i] = p.lister.Commits(ctx, target.Repo, target.Ref, s.Since)
		}(i, target)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return CycleResult{}, err
	}

	for i, target := range s.Targets {
		result := results[i]
		if !result.Changed() {
			if result.Outcome != gitlab.OutcomeSuccess {
				logger.Info("query failed", "repo", target.Repo, "outcome", result.Outcome, "status", result.Status, "message", result.Message)
			}
			continue
		}
		if s.Filter != "" {
			matched, err := anyCommitMatches(result.Commits, s.Filter)
			if err != nil {
				logger.Error(err, "filter evaluation failed", "repo", target.Repo)
				continue
			}
			if !matched {
				continue
			}
		}
		logger.Info("change detected", "repo", target.Repo)
		s.appendChanged(target.Repo)
	}

	if len(s.Changed) > 0 || s.Runs >= s.MaxRuns {
		logger.Info("session complete", "changed", s.Changed)
		return CycleResult{Done: true, Changed: append([]string{}, s.Changed...)}, nil
	}
	logger.Info("no changes, requeueing next check", "after", s.Interval.Duration)
	return CycleResult{RequeueAfter: s.Interval.Duration}, nil
}

// Wait drives the session to its terminal decision, waiting out the
// interval between cycles. The waits select on the context, so a
// cancelled session stops promptly whether it is sleeping or mid-cycle.
func (p *Poller) Wait(ctx context.Context, s *SessionState) ([]string, error) {
	for {
		result, err := p.Cycle(ctx, s)
		if err != nil {
			return nil, err
		}
		if result.Done {
			return result.Changed, nil
		}
		timer := time.NewTimer(result.RequeueAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Check runs exactly one cycle for the spec and reports which
// repositories changed, for callers that schedule their own retries. The
// spec's budget and interval are ignored.
func (p *Poller) Check(ctx context.Context, spec Spec) ([]string, error) {
	spec.MaxRuns = 1
	spec.Interval = time.Second
	s, err := NewSession(spec)
	if err != nil {
		return nil, err
	}
	result, err := p.Cycle(ctx, s)
	if err != nil {
		return nil, err
	}
	return result.Changed, nil
}

// anyCommitMatches reports whether at least one commit satisfies the
// filter expression.
func anyCommitMatches(commits []gitlab.Commit, filter string) (bool, error) {
	for _, commit := range commits {
		cctx, err := cel.New(commit)
		if err != nil {
			return false, err
		}
		matched, err := cctx.EvaluateBool(filter)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
