package assessment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"attest/internal/audittrail"
	"attest/internal/compliance/catalog"
	"attest/internal/records"
	stringutil "attest/pkg/platform/strings"
	"attest/pkg/requestcontext"
)

const (
	// auditVolumeTarget is the audit record count that scores an audit trail 100.
	auditVolumeTarget = 10

	// noActivityScore is returned when the window holds nothing to judge.
	noActivityScore = missingProbeScore
)

// BuiltinProbes registers event-store probes for every automated or mixed
// requirement of cat whose control category they can measure: audit trail
// requirements get an audit volume probe, access control requirements a
// failed-access ratio probe. Manual requirements are left unprobed.
func BuiltinProbes(cat *catalog.Catalog, source RecordSource, window time.Duration) *Registry {
	if window <= 0 {
		window = defaultEvidenceWindow
	}
	audit := AuditTrailProbe{Source: source, Window: window, Target: auditVolumeTarget}
	access := AccessControlProbe{Source: source, Window: window}

	probes := make(map[string]Probe)
	for _, reg := range cat.List() {
		for _, req := range reg.Requirements {
			if req.Method == catalog.MethodManual {
				continue
			}
			switch req.Category {
			case catalog.CategoryAuditTrail:
				probes[req.ID] = audit
			case catalog.CategoryAccessControl:
				probes[req.ID] = access
			}
		}
	}
	return NewRegistry(probes)
}

// Merge returns a registry holding r's probes overridden by other's.
func (r *Registry) Merge(other *Registry) *Registry {
	probes := make(map[string]Probe, r.Len()+other.Len())
	for _, id := range r.IDs() {
		probes[id], _ = r.Get(id)
	}
	for _, id := range other.IDs() {
		probes[id], _ = other.Get(id)
	}
	return NewRegistry(probes)
}

// AuditTrailProbe scores recent audit-level volume: Target records or more
// in Window score 100, none scores 0.
type AuditTrailProbe struct {
	Source RecordSource
	Window time.Duration
	Target int
}

func (p AuditTrailProbe) Check(ctx context.Context, _ catalog.Requirement) (float64, error) {
	recs, err := p.Source.Search(ctx, records.Criteria{
		Levels: []records.Level{records.LevelAudit},
		From:   requestcontext.Now(ctx).Add(-p.Window),
	})
	if err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	target := max(p.Target, 1)
	return round2(min(100, 100*float64(len(recs))/float64(target))), nil
}

// AccessControlProbe scores the share of successful login and access
// attempts in the audit trail over Window.
type AccessControlProbe struct {
	Source RecordSource
	Window time.Duration
}

func (p AccessControlProbe) Check(ctx context.Context, _ catalog.Requirement) (float64, error) {
	recs, err := p.Source.Search(ctx, records.Criteria{
		Categories: []string{records.CategoryAudit},
		From:       requestcontext.Now(ctx).Add(-p.Window),
	})
	if err != nil {
		return 0, fmt.Errorf("read access attempts: %w", err)
	}

	var attempts, failed int
	for _, r := range recs {
		action, _ := r.Metadata["action"].Str()
		if !stringutil.ContainsAny(strings.ToLower(action), "login", "access", "auth") {
			continue
		}
		attempts++
		if outcome, _ := r.Metadata["outcome"].Str(); outcome == string(audittrail.OutcomeFailure) {
			failed++
		}
	}
	if attempts == 0 {
		return noActivityScore, nil
	}
	return round2(100 * float64(attempts-failed) / float64(attempts)), nil
}
