package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/repository"
	"github.com/dualtrack/be-acq-requests/internal/rules"
	"github.com/dualtrack/be-acq-requests/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	intake   *service.IntakeService
	workflow *service.WorkflowService
	requests *service.RequestService
	advisory *service.AdvisoryService
	rules    *service.RulesService
	log      zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	intake *service.IntakeService,
	workflow *service.WorkflowService,
	requests *service.RequestService,
	advisory *service.AdvisoryService,
	rulesSvc *service.RulesService,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		intake:   intake,
		workflow: workflow,
		requests: requests,
		advisory: advisory,
		rules:    rulesSvc,
		log:      log,
	}
}

// Register wires all routes onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/requests", h.Requests)
	mux.HandleFunc("/api/v1/requests/detail", h.RequestDetail)
	mux.HandleFunc("/api/v1/requests/intake", h.SaveIntake)
	mux.HandleFunc("/api/v1/requests/intake/preview", h.PreviewDerive)
	mux.HandleFunc("/api/v1/requests/intake/complete", h.CompleteIntake)
	mux.HandleFunc("/api/v1/requests/checklist/recalculate", h.RecalculateChecklist)
	mux.HandleFunc("/api/v1/requests/submit", h.Submit)
	mux.HandleFunc("/api/v1/requests/approval", h.ProcessApproval)
	mux.HandleFunc("/api/v1/requests/approval/status", h.ApprovalStatus)
	mux.HandleFunc("/api/v1/requests/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/documents/status", h.UpdateDocumentStatus)
	mux.HandleFunc("/api/v1/advisories", h.Advisories)
	mux.HandleFunc("/api/v1/advisories/review", h.UpdateAdvisoryReview)
	mux.HandleFunc("/api/v1/admin/rules", h.RuleSnapshot)
	mux.HandleFunc("/api/v1/admin/templates", h.Templates)
	mux.HandleFunc("/api/v1/admin/templates/steps", h.ReplaceTemplateSteps)
	mux.HandleFunc("/api/v1/admin/thresholds", h.CreateThreshold)
	mux.HandleFunc("/api/v1/admin/thresholds/end", h.EndThreshold)
	mux.HandleFunc("/api/v1/admin/document-templates", h.DocumentTemplates)
	mux.HandleFunc("/api/v1/admin/document-rules", h.DocumentRules)
	mux.HandleFunc("/api/v1/admin/gates", h.Gates)
	mux.HandleFunc("/api/v1/admin/pipeline-configs", h.UpsertPipelineConfig)
	mux.HandleFunc("/api/v1/admin/trigger-rules", h.TriggerRules)
	mux.HandleFunc("/healthz", h.Health)
}

// Health reports liveness.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── requests ──────────────────────────────────────────────────────────────────

// Requests handles POST (create draft), GET (list) and DELETE (draft).
func (h *HTTPHandler) Requests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var input service.CreateRequestInput
		if !decodeBody(w, r, &input) {
			return
		}
		req, err := h.intake.CreateDraft(r.Context(), input)
		if err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, req)

	case http.MethodGet:
		filter := repository.RequestFilter{
			Status:     r.URL.Query().Get("status"),
			Type:       r.URL.Query().Get("type"),
			Tier:       r.URL.Query().Get("tier"),
			Pipeline:   r.URL.Query().Get("pipeline"),
			FiscalYear: r.URL.Query().Get("fiscal_year"),
			Search:     r.URL.Query().Get("search"),
		}
		filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
		filter.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

		requests, total, err := h.requests.List(r.Context(), filter)
		if err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"requests": requests,
			"total":    total,
		})

	case http.MethodDelete:
		id, ok := queryID(w, r, "id")
		if !ok {
			return
		}
		if err := h.requests.DeleteDraft(r.Context(), id); err != nil {
			h.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// RequestDetail handles GET for the aggregate request view.
func (h *HTTPHandler) RequestDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.requests.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Cancel handles POST to withdraw a request.
func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID      int64   `json:"id"`
		ActorID string  `json:"actor_id"`
		Reason  *string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := h.requests.Cancel(r.Context(), body.ID, body.ActorID, body.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// ── intake ────────────────────────────────────────────────────────────────────

// SaveIntake handles PATCH/POST of wizard answers onto a draft.
func (h *HTTPHandler) SaveIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	var answers service.IntakeAnswers
	if !decodeBody(w, r, &answers) {
		return
	}
	req, err := h.intake.SaveAnswers(r.Context(), id, answers)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// PreviewDerive handles POST for the live wizard preview. Nothing is
// persisted.
func (h *HTTPHandler) PreviewDerive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		NeedType         string `json:"need_type"`
		Situation        string `json:"situation"`
		ChangeType       string `json:"change_type"`
		VendorKnown      string `json:"vendor_known"`
		BuyCategory      string `json:"buy_category"`
		MixedPredominant string `json:"mixed_predominant"`
		EstimatedValue   int64  `json:"estimated_value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	preview := h.intake.PreviewDerive(r.Context(), rules.Answers{
		NeedType:         body.NeedType,
		Situation:        body.Situation,
		ChangeType:       body.ChangeType,
		VendorKnown:      body.VendorKnown,
		BuyCategory:      body.BuyCategory,
		MixedPredominant: body.MixedPredominant,
		EstimatedValue:   body.EstimatedValue,
	})
	respondJSON(w, http.StatusOK, preview)
}

// CompleteIntake handles POST to lock in classification, checklist and
// advisory reviews.
func (h *HTTPHandler) CompleteIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID      int64  `json:"id"`
		ActorID string `json:"actor_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	completion, err := h.intake.CompleteIntake(r.Context(), body.ID, body.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, completion)
}

// RecalculateChecklist handles POST to re-derive and diff the checklist.
func (h *HTTPHandler) RecalculateChecklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID      int64  `json:"id"`
		ActorID string `json:"actor_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	docs, err := h.intake.RecalculateChecklist(r.Context(), body.ID, body.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// ── workflow ──────────────────────────────────────────────────────────────────

// Submit handles POST to move a request into its approval pipeline.
func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID      int64  `json:"id"`
		ActorID string `json:"actor_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := h.workflow.Submit(r.Context(), body.ID, body.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// ProcessApproval handles POST of an approve/reject/return decision.
func (h *HTTPHandler) ProcessApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		RequestID int64   `json:"request_id"`
		StepID    int64   `json:"step_id"`
		Action    string  `json:"action"`
		ActorID   string  `json:"actor_id"`
		Comments  *string `json:"comments"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := h.workflow.ProcessApproval(r.Context(), service.ApprovalDecision{
		RequestID: body.RequestID,
		StepID:    body.StepID,
		Action:    body.Action,
		ActorID:   body.ActorID,
		Comments:  body.Comments,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// ApprovalStatus handles GET for pipeline position and progress.
func (h *HTTPHandler) ApprovalStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := queryID(w, r, "request_id")
	if !ok {
		return
	}
	status, err := h.workflow.GetApprovalStatus(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// ── documents and advisories ──────────────────────────────────────────────────

// UpdateDocumentStatus handles POST to move a checklist document.
func (h *HTTPHandler) UpdateDocumentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	doc, err := h.requests.UpdateDocumentStatus(r.Context(), body.ID, body.Status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// Advisories handles GET for a request's advisory reviews.
func (h *HTTPHandler) Advisories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := queryID(w, r, "request_id")
	if !ok {
		return
	}
	inputs, err := h.advisory.ListForRequest(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"advisories": inputs})
}

// UpdateAdvisoryReview handles POST of a reviewer's status change.
func (h *HTTPHandler) UpdateAdvisoryReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID             int64   `json:"id"`
		Status         string  `json:"status"`
		Findings       *string `json:"findings"`
		Recommendation *string `json:"recommendation"`
		ReviewerID     *int64  `json:"reviewer_id"`
		ReviewerName   *string `json:"reviewer_name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	input, err := h.advisory.UpdateReview(r.Context(), service.AdvisoryUpdate{
		InputID:        body.ID,
		Status:         body.Status,
		Findings:       body.Findings,
		Recommendation: body.Recommendation,
		ReviewerID:     body.ReviewerID,
		ReviewerName:   body.ReviewerName,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, input)
}

// ── admin ─────────────────────────────────────────────────────────────────────

// RuleSnapshot handles GET for the full rule set as evaluation sees it.
func (h *HTTPHandler) RuleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, h.rules.Snapshot(r.Context()))
}

// Templates handles GET (list/get), POST (create), PUT (update) and DELETE.
func (h *HTTPHandler) Templates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if idStr := r.URL.Query().Get("id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				http.Error(w, "Invalid id", http.StatusBadRequest)
				return
			}
			template, err := h.rules.GetTemplate(r.Context(), id)
			if err != nil {
				h.respondError(w, err)
				return
			}
			respondJSON(w, http.StatusOK, template)
			return
		}
		templates, err := h.rules.ListTemplates(r.Context())
		if err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"templates": templates})

	case http.MethodPost:
		var template rules.ApprovalTemplate
		if !decodeBody(w, r, &template) {
			return
		}
		if err := h.rules.CreateTemplate(r.Context(), &template); err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, template)

	case http.MethodPut:
		var template rules.ApprovalTemplate
		if !decodeBody(w, r, &template) {
			return
		}
		if err := h.rules.UpdateTemplate(r.Context(), &template); err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, template)

	case http.MethodDelete:
		id, ok := queryID(w, r, "id")
		if !ok {
			return
		}
		if err := h.rules.DeleteTemplate(r.Context(), id); err != nil {
			h.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ReplaceTemplateSteps handles PUT of a template's full step list.
func (h *HTTPHandler) ReplaceTemplateSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := queryID(w, r, "template_id")
	if !ok {
		return
	}
	var body struct {
		Steps []rules.ApprovalTemplateStep `json:"steps"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.rules.ReplaceTemplateSteps(r.Context(), id, body.Steps); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"steps": body.Steps})
}

// CreateThreshold handles POST of a new effective-dated threshold.
func (h *HTTPHandler) CreateThreshold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var threshold rules.ThresholdConfig
	if !decodeBody(w, r, &threshold) {
		return
	}
	if err := h.rules.CreateThreshold(r.Context(), &threshold); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, threshold)
}

// EndThreshold handles POST to close a threshold row.
func (h *HTTPHandler) EndThreshold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ID      int64  `json:"id"`
		EndDate string `json:"end_date"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.rules.EndThreshold(r.Context(), body.ID, body.EndDate); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DocumentTemplates handles POST (create) and PUT (update) of package
// document types.
func (h *HTTPHandler) DocumentTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var tmpl rules.DocumentTemplate
		if !decodeBody(w, r, &tmpl) {
			return
		}
		if err := h.rules.CreateDocumentTemplate(r.Context(), &tmpl); err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, tmpl)

	case http.MethodPut:
		var tmpl rules.DocumentTemplate
		if !decodeBody(w, r, &tmpl) {
			return
		}
		if err := h.rules.UpdateDocumentTemplate(r.Context(), &tmpl); err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, tmpl)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Gates returns the fixed gate catalog.
func (h *HTTPHandler) Gates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, h.rules.Gates())
}

// DocumentRules handles POST (create) and DELETE.
func (h *HTTPHandler) DocumentRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var rule rules.DocumentRule
		if !decodeBody(w, r, &rule) {
			return
		}
		if err := h.rules.CreateDocumentRule(r.Context(), &rule); err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, rule)

	case http.MethodDelete:
		id, ok := queryID(w, r, "id")
		if !ok {
			return
		}
		if err := h.rules.DeleteDocumentRule(r.Context(), id); err != nil {
			h.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// UpsertPipelineConfig handles PUT of a pipeline x team matrix cell.
func (h *HTTPHandler) UpsertPipelineConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var config rules.AdvisoryPipelineConfig
	if !decodeBody(w, r, &config) {
		return
	}
	if err := h.rules.UpsertPipelineConfig(r.Context(), &config); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, config)
}

// TriggerRules handles POST (create) and DELETE.
func (h *HTTPHandler) TriggerRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var rule rules.AdvisoryTriggerRule
		if !decodeBody(w, r, &rule) {
			return
		}
		if err := h.rules.CreateTriggerRule(r.Context(), &rule); err != nil {
			h.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, rule)

	case http.MethodDelete:
		id, ok := queryID(w, r, "id")
		if !ok {
			return
		}
		if err := h.rules.DeleteTriggerRule(r.Context(), id); err != nil {
			h.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func queryID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		http.Error(w, param+" is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "Invalid "+param, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
