package repository

import "time"

// ── Domain types for the acquisition lifecycle ────────────────────────────────

// AcquisitionRequest is the central entity: one procurement need moving
// through intake, classification and the approval pipeline.
type AcquisitionRequest struct {
	ID            int64   `json:"id"`
	RequestNumber string  `json:"request_number"` // ACQ-YYYY-NNNN, unique within a year
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	RequestorID   *int64  `json:"requestor_id,omitempty"`
	RequestorName *string `json:"requestor_name,omitempty"`
	RequestorOrg  *string `json:"requestor_org,omitempty"`

	EstimatedValue int64   `json:"estimated_value"` // whole dollars
	FiscalYear     string  `json:"fiscal_year"`
	Priority       string  `json:"priority"`
	NeedByDate     *string `json:"need_by_date,omitempty"`

	// Raw intake wizard answers.
	IntakeNeedType         *string `json:"intake_need_type,omitempty"`
	IntakeSituation        *string `json:"intake_situation,omitempty"`
	IntakeSpecificVendor   *string `json:"intake_specific_vendor,omitempty"`
	IntakeExistingVehicle  *string `json:"intake_existing_vehicle,omitempty"`
	IntakeChangeType       *string `json:"intake_change_type,omitempty"`
	IntakeBuyCategory      *string `json:"intake_buy_category,omitempty"`
	IntakeMixedPredominant *string `json:"intake_mixed_predominant,omitempty"`

	// Derived classification. Written only by the classifier.
	DerivedAcquisitionType     *string `json:"derived_acquisition_type,omitempty"`
	DerivedTier                *string `json:"derived_tier,omitempty"`
	DerivedPipeline            *string `json:"derived_pipeline,omitempty"`
	DerivedContractCharacter   *string `json:"derived_contract_character,omitempty"`
	DerivedRequirementsDocType *string `json:"derived_requirements_doc_type,omitempty"`
	DerivedSCLSApplicable      *bool   `json:"derived_scls_applicable,omitempty"`
	DerivedQASPRequired        *bool   `json:"derived_qasp_required,omitempty"`
	DerivedEvalApproach        *string `json:"derived_eval_approach,omitempty"`
	ApprovalTemplateKey        *string `json:"approval_template_key,omitempty"`
	AdvisoryTriggerCodes       *string `json:"advisory_trigger_codes,omitempty"`

	IntakeCompleted     bool       `json:"intake_completed"`
	IntakeCompletedDate *time.Time `json:"intake_completed_date,omitempty"`

	// Workflow status. Written only by the approval state machine.
	Status string `json:"status"`

	// Denormalized advisory review state, recomputed from AdvisoryInput
	// rows for display. Never hand-written elsewhere.
	SCRMStatus       *string `json:"scrm_status,omitempty"`
	SBOStatus        *string `json:"sbo_status,omitempty"`
	CIOStatus        *string `json:"cio_status,omitempty"`
	Section508Status *string `json:"section508_status,omitempty"`
	FMStatus         *string `json:"fm_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Request statuses. Gate statuses (iss_review ... senior_review) are set as
// the active step advances; the rest are lifecycle states.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusReturned  = "returned"
	StatusCancelled = "cancelled"
)

// ApprovalStep is one materialized step of a request's approval pipeline.
type ApprovalStep struct {
	ID           int64      `json:"id"`
	RequestID    int64      `json:"request_id"`
	StepNumber   int        `json:"step_number"`
	StepName     string     `json:"step_name"`
	ApproverRole string     `json:"approver_role"`
	SLADays      int        `json:"sla_days"`
	Status       string     `json:"status"` // pending | active | approved | rejected | returned | skipped
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ActedOnDate  *time.Time `json:"acted_on_date,omitempty"`
	ActionBy     *string    `json:"action_by,omitempty"`
	Comments     *string    `json:"comments,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Step statuses.
const (
	StepPending  = "pending"
	StepActive   = "active"
	StepApproved = "approved"
	StepRejected = "rejected"
	StepReturned = "returned"
	StepSkipped  = "skipped"
)

// AdvisoryInput is one specialist team's review of a request.
type AdvisoryInput struct {
	ID             int64      `json:"id"`
	RequestID      int64      `json:"request_id"`
	Team           string     `json:"team"`
	Status         string     `json:"status"` // requested | in_review | info_requested | complete_no_issues | complete_issues_found | waived
	BlocksGate     *string    `json:"blocks_gate,omitempty"`
	Findings       *string    `json:"findings,omitempty"`
	Recommendation *string    `json:"recommendation,omitempty"`
	ReviewerID     *int64     `json:"reviewer_id,omitempty"`
	ReviewerName   *string    `json:"reviewer_name,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Advisory statuses.
const (
	AdvisoryRequested     = "requested"
	AdvisoryInReview      = "in_review"
	AdvisoryInfoRequested = "info_requested"
	AdvisoryCompleteClean = "complete_no_issues"
	AdvisoryCompleteFound = "complete_issues_found"
	AdvisoryWaived        = "waived"
)

// PackageDocument is one required (or optional) document of the request's
// acquisition package, generated by the checklist.
type PackageDocument struct {
	ID                 int64     `json:"id"`
	RequestID          int64     `json:"request_id"`
	DocumentTemplateID int64     `json:"document_template_id"`
	DocumentType       string    `json:"document_type"`
	Title              string    `json:"title"`
	Status             string    `json:"status"` // not_started | in_progress | complete | uploaded
	IsRequired         bool      `json:"is_required"`
	RequiredBeforeGate *string   `json:"required_before_gate,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Document statuses.
const (
	DocNotStarted = "not_started"
	DocInProgress = "in_progress"
	DocComplete   = "complete"
	DocUploaded   = "uploaded"
)

// ActivityLog is one immutable audit record of a lifecycle event.
type ActivityLog struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"request_id"`
	ActivityType string    `json:"activity_type"`
	Description  string    `json:"description"`
	Actor        string    `json:"actor"`
	OldValue     *string   `json:"old_value,omitempty"`
	NewValue     *string   `json:"new_value,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
