package assessment

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"attest/internal/compliance/catalog"
	"attest/pkg/platform/sentinel"
)

// Probe is an automated check for one requirement. It returns a score in
// [0,100]; an error scores 0.
type Probe interface {
	Check(ctx context.Context, req catalog.Requirement) (float64, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, req catalog.Requirement) (float64, error)

// Check calls f.
func (f ProbeFunc) Check(ctx context.Context, req catalog.Requirement) (float64, error) {
	return f(ctx, req)
}

// Registry maps requirement ids to probes. It is immutable once built.
type Registry struct {
	probes map[string]Probe
}

// NewRegistry copies probes into a registry. Nil probes are skipped.
func NewRegistry(probes map[string]Probe) *Registry {
	r := &Registry{probes: make(map[string]Probe, len(probes))}
	for id, p := range probes {
		if p != nil {
			r.probes[id] = p
		}
	}
	return r
}

// Get returns the probe for a requirement.
func (r *Registry) Get(requirementID string) (Probe, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.probes[requirementID]
	return p, ok
}

// IDs returns the registered requirement ids, sorted.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.probes))
	for id := range r.probes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered probes.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.probes)
}

type probeResult struct {
	score float64
	err   error
}

// RunProbe runs p under timeout. A panic, an error, a timeout or an
// out-of-range score all yield 0 with an error; the probe is not retried.
// A probe that ignores its context is abandoned when the timeout fires.
func RunProbe(ctx context.Context, p Probe, req catalog.Requirement, timeout time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan probeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probeResult{err: fmt.Errorf("probe panicked: %v\n%s", r, debug.Stack())}
			}
		}()
		score, err := p.Check(ctx, req)
		done <- probeResult{score: score, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("probe %s: %w", req.ID, sentinel.ErrTimeout)
		}
		return 0, fmt.Errorf("probe %s: %w", req.ID, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return 0, fmt.Errorf("probe %s: %w", req.ID, res.err)
		}
		if res.score != clampScore(res.score) {
			return 0, fmt.Errorf("probe %s: score %v out of range", req.ID, res.score)
		}
		return res.score, nil
	}
}
