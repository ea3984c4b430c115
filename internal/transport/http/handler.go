// Package httptransport exposes the engine over HTTP under /v1.
package httptransport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"attest/internal/audittrail"
	"attest/internal/compliance/assessment"
	"attest/internal/compliance/incident"
	"attest/internal/compliance/remediation"
	"attest/internal/compliance/report"
	"attest/internal/engine"
	"attest/internal/records"
	"attest/internal/records/export"
	"attest/internal/retention"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
	"attest/pkg/platform/middleware/auth"
	stringutil "attest/pkg/platform/strings"
	"attest/pkg/requestcontext"
)

// maxLimit caps the limit query parameter on record searches.
const maxLimit = 10000

// Service is the engine surface the handlers use.
type Service interface {
	Log(ctx context.Context, level records.Level, category, message string, metadata records.Metadata) error
	Audit(ctx context.Context, in audittrail.Input) error
	DataAccess(ctx context.Context, in engine.DataAccessInput) error
	Security(ctx context.Context, in engine.SecurityInput) error
	Compliance(ctx context.Context, regulationID, event, status string, details records.Metadata) error

	Search(ctx context.Context, c records.Criteria) ([]*records.LogRecord, error)
	Export(ctx context.Context, w io.Writer, format export.Format, c records.Criteria) error
	GenerateComplianceReport(ctx context.Context, period report.Period) (*report.Report, error)
	Assess(ctx context.Context, regulationID string) (*assessment.Assessment, error)
	GetAssessments(regulationID string) []*assessment.Assessment
	RemediationPlan(regulationID string) (*remediation.Plan, error)
	ReportIncident(ctx context.Context, in incident.Input) (*incident.Incident, error)
	UpdateIncident(ctx context.Context, id string, p incident.Patch) (*incident.Incident, error)
	GetIncidents(status incident.Status) []*incident.Incident
	ForgetSubject(ctx context.Context, subjectID string) (*retention.ErasureResult, error)
	RunCleanup(ctx context.Context) (*retention.CleanupResult, error)
}

// Handler serves the v1 API.
type Handler struct {
	service   Service
	validator auth.TokenValidator
	logger    *slog.Logger
}

// New creates a handler. Admin routes validate bearer tokens with validator.
func New(service Service, validator auth.TokenValidator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, validator: validator, logger: logger}
}

// Register mounts the v1 routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/logs", h.HandleLog)
		r.Post("/audit", h.HandleAudit)
		r.Post("/data-access", h.HandleDataAccess)
		r.Post("/security", h.HandleSecurity)
		r.Post("/compliance", h.HandleCompliance)

		r.Get("/records", h.HandleSearch)
		r.Get("/records/export", h.HandleExport)
		r.Get("/reports/compliance", h.HandleReport)

		r.Post("/assessments/{regulationID}", h.HandleAssess)
		r.Get("/assessments", h.HandleListAssessments)
		r.Get("/remediation/{regulationID}", h.HandleRemediation)

		r.Get("/incidents", h.HandleListIncidents)
		r.Post("/incidents", h.HandleReportIncident)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(h.validator, h.logger, auth.RoleComplianceOfficer))
			r.Patch("/incidents/{id}", h.HandleUpdateIncident)
			r.Post("/subjects/{subjectID}/forget", h.HandleForget)
			r.Post("/retention/cleanup", h.HandleCleanup)
		})
	})
}

// =============================================================================
// Write side
// =============================================================================

func (h *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[LogRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.accepted(w, r, h.service.Log(ctx, req.level, req.Category, req.Message, req.Metadata))
}

func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AuditRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.accepted(w, r, h.service.Audit(ctx, req.Input))
}

func (h *Handler) HandleDataAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DataAccessRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.accepted(w, r, h.service.DataAccess(ctx, req.DataAccessInput))
}

func (h *Handler) HandleSecurity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SecurityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.accepted(w, r, h.service.Security(ctx, req.SecurityInput))
}

func (h *Handler) HandleCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ComplianceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.accepted(w, r, h.service.Compliance(ctx, req.Regulation, req.Event, req.Status, req.Details))
}

func (h *Handler) accepted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.logger.WarnContext(r.Context(), "write rejected",
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// =============================================================================
// Records
// =============================================================================

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recs, err := h.service.Search(r.Context(), c)
	if err != nil {
		h.fail(w, r, "record search failed", err)
		return
	}
	if recs == nil {
		recs = []*records.LogRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := parseCriteria(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// buffered so a failed export still gets an error status
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf, format, c); err != nil {
		h.fail(w, r, "record export failed", err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTime(q.Get("from"), "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseTime(q.Get("to"), "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rep, err := h.service.GenerateComplianceReport(r.Context(), report.Period{From: from, To: to})
	if err != nil {
		h.fail(w, r, "compliance report failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rep)
}

// =============================================================================
// Assessments
// =============================================================================

func (h *Handler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	regulationID := strings.ToLower(chi.URLParam(r, "regulationID"))
	a, err := h.service.Assess(r.Context(), regulationID)
	if err != nil {
		h.fail(w, r, "assessment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleListAssessments(w http.ResponseWriter, r *http.Request) {
	list := h.service.GetAssessments(strings.ToLower(r.URL.Query().Get("regulation")))
	if list == nil {
		list = []*assessment.Assessment{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"assessments": list})
}

func (h *Handler) HandleRemediation(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.RemediationPlan(strings.ToLower(chi.URLParam(r, "regulationID")))
	if err != nil {
		h.fail(w, r, "remediation plan lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

// =============================================================================
// Incidents
// =============================================================================

func (h *Handler) HandleListIncidents(w http.ResponseWriter, r *http.Request) {
	status := incident.Status(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid status: "+string(status)))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"incidents": h.service.GetIncidents(status)})
}

func (h *Handler) HandleReportIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IncidentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	inc, err := h.service.ReportIncident(ctx, req.Input)
	if err != nil {
		h.fail(w, r, "incident report failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inc)
}

func (h *Handler) HandleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IncidentPatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	inc, err := h.service.UpdateIncident(ctx, chi.URLParam(r, "id"), req.Patch)
	if err != nil {
		h.fail(w, r, "incident update failed", err)
		return
	}
	h.logger.InfoContext(ctx, "incident updated",
		"request_id", requestcontext.RequestID(ctx),
		"incident_id", inc.ID,
		"status", inc.Status,
		"actor", requestcontext.ActorID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, inc)
}

// =============================================================================
// Admin
// =============================================================================

func (h *Handler) HandleForget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.ForgetSubject(ctx, chi.URLParam(r, "subjectID"))
	if err != nil {
		h.fail(w, r, "subject erasure failed", err)
		return
	}
	h.logger.InfoContext(ctx, "subject erased",
		"request_id", requestcontext.RequestID(ctx),
		"actor", requestcontext.ActorID(ctx),
		"deleted", res.Deleted,
		"anonymized", res.Anonymized,
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.RunCleanup(r.Context())
	if err != nil {
		h.fail(w, r, "retention cleanup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// fail logs unexpected errors and writes the mapped response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}

// =============================================================================
// Query parsing
// =============================================================================

func parseCriteria(r *http.Request) (records.Criteria, error) {
	q := r.URL.Query()
	c := records.Criteria{
		Categories: stringutil.SplitList(q.Get("category")),
		SubjectID:  q.Get("subject"),
		Keyword:    q.Get("q"),
		Regulation: strings.ToLower(q.Get("regulation")),
	}
	for _, l := range stringutil.DedupeAndTrimLower(stringutil.SplitList(q.Get("level"))) {
		level, err := records.ParseLevel(l)
		if err != nil {
			return c, err
		}
		c.Levels = append(c.Levels, level)
	}
	var err error
	if c.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return c, err
	}
	if c.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return c, err
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxLimit {
			return c, dErrors.Newf(dErrors.CodeValidation, "limit must be between 0 and %d", maxLimit)
		}
		c.Limit = n
	}
	return c, nil
}

func parseTime(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, name+" must be an RFC3339 timestamp")
	}
	return t, nil
}
