package postgres

import (
	"context"
	"encoding/json"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// ReportRepo implements ports.ReportRepository with pgx.
type ReportRepo struct {
	db *DB
}

// NewReportRepo creates a new ReportRepo.
func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Insert stores a new report.
func (r *ReportRepo) Insert(ctx context.Context, report *domain.Report) error {
	chart, err := json.Marshal(report.Chart)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO reports (id, recipient, state, zip, chart, summary, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, report.ID, report.Recipient, report.State, report.Zip,
		chart, report.Summary, report.Status, report.Metadata, report.CreatedAt)
	return err
}

// Update rewrites the mutable fields of a report.
func (r *ReportRepo) Update(ctx context.Context, report *domain.Report) error {
	chart, err := json.Marshal(report.Chart)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		UPDATE reports
		SET chart = $2, summary = $3, status = $4, metadata = $5
		WHERE id = $1
	`, report.ID, chart, report.Summary, report.Status, report.Metadata)
	return err
}

// GetByID returns a report by id.
func (r *ReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	var report domain.Report
	var chart []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, COALESCE(recipient, ''), COALESCE(state, ''), COALESCE(zip, ''),
		       chart, COALESCE(summary, ''), status, COALESCE(metadata, '{}'), created_at
		FROM reports WHERE id = $1
	`, id).Scan(
		&report.ID, &report.Recipient, &report.State, &report.Zip,
		&chart, &report.Summary, &report.Status, &report.Metadata, &report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(chart, &report.Chart); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns the most recent reports.
func (r *ReportRepo) List(ctx context.Context, limit int) ([]domain.Report, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, COALESCE(recipient, ''), COALESCE(state, ''), COALESCE(zip, ''),
		       chart, COALESCE(summary, ''), status, COALESCE(metadata, '{}'), created_at
		FROM reports ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		var report domain.Report
		var chart []byte
		if err := rows.Scan(
			&report.ID, &report.Recipient, &report.State, &report.Zip,
			&chart, &report.Summary, &report.Status, &report.Metadata, &report.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(chart, &report.Chart); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
