package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
)

// PackageDocumentRepository manages the document checklist materialized on
// each request.
type PackageDocumentRepository struct {
	db *database.DB
}

// NewPackageDocumentRepository creates a new PackageDocumentRepository.
func NewPackageDocumentRepository(db *database.DB) *PackageDocumentRepository {
	return &PackageDocumentRepository{db: db}
}

const documentColumns = `
	id, request_id, document_template_id, document_type, title, status,
	is_required, required_before_gate, created_at, updated_at`

// Create inserts one checklist entry.
func (r *PackageDocumentRepository) Create(ctx context.Context, q database.Querier, doc *PackageDocument) error {
	query := `
		INSERT INTO package_documents
		    (request_id, document_template_id, document_type, title, status,
		     is_required, required_before_gate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		doc.RequestID,
		doc.DocumentTemplateID,
		doc.DocumentType,
		doc.Title,
		doc.Status,
		doc.IsRequired,
		doc.RequiredBeforeGate,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create package document")
	}
	return nil
}

// GetByRequestID returns the request's checklist.
func (r *PackageDocumentRepository) GetByRequestID(ctx context.Context, q database.Querier, requestID int64) ([]*PackageDocument, error) {
	query := `SELECT ` + documentColumns + `
		FROM package_documents
		WHERE request_id = $1
		ORDER BY id`

	rows, err := q.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list package documents")
	}
	defer rows.Close()

	var docs []*PackageDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan package document")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// UpdateStatus moves a document through its preparation states.
func (r *PackageDocumentRepository) UpdateStatus(ctx context.Context, id int64, status string) (*PackageDocument, error) {
	query := `
		UPDATE package_documents
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + documentColumns

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id, status))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("package document", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to update package document")
	}
	return doc, nil
}

// SetRequirement flips an entry's required flag and gate during checklist
// recalculation, preserving its preparation status.
func (r *PackageDocumentRepository) SetRequirement(ctx context.Context, q database.Querier, id int64, required bool, gate *string) error {
	query := `
		UPDATE package_documents
		SET is_required = $2, required_before_gate = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID int64
	err := q.QueryRow(ctx, query, id, required, gate).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("package document", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update document requirement")
	}
	return nil
}

// Delete removes a checklist entry that no longer applies and was never
// started.
func (r *PackageDocumentRepository) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM package_documents WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete package document")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("package document", id)
	}
	return nil
}

// CountIncompleteRequired returns how many required documents for the gate
// are not yet complete or uploaded.
func (r *PackageDocumentRepository) CountIncompleteRequired(ctx context.Context, q database.Querier, requestID int64, gate string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM package_documents
		WHERE request_id = $1
		  AND is_required = TRUE
		  AND required_before_gate = $2
		  AND status NOT IN ($3, $4)
	`

	var count int
	err := q.QueryRow(ctx, query, requestID, gate, DocComplete, DocUploaded).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count incomplete documents")
	}
	return count, nil
}

func scanDocument(row requestScanner) (*PackageDocument, error) {
	doc := &PackageDocument{}
	err := row.Scan(
		&doc.ID,
		&doc.RequestID,
		&doc.DocumentTemplateID,
		&doc.DocumentType,
		&doc.Title,
		&doc.Status,
		&doc.IsRequired,
		&doc.RequiredBeforeGate,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
