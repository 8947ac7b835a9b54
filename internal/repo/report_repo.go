package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Liveboard/internal/domain"
)

const defaultReportLimit = 20

// ReportRepo — архив собранных отчётов по водителям.
type ReportRepo struct {
	pool *pgxpool.Pool
}

// NewReportRepo создаёт новый ReportRepo.
func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// SaveReport сохраняет отчёт.
func (r *ReportRepo) SaveReport(ctx context.Context, report *domain.DriverReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	driverIDs := report.DriverIDs
	if driverIDs == nil {
		driverIDs = []int64{}
	}

	query := `
		INSERT INTO driver_reports (id, date_from, date_to, driver_ids, error, report, generated_at)
		VALUES ($1, $2::date, $3::date, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		report.ID,
		report.From,
		report.To,
		driverIDs,
		nullString(report.Error),
		reportJSON,
		report.GeneratedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: report %s", ErrAlreadyExists, report.ID)
	}
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByID возвращает отчёт по ID.
func (r *ReportRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DriverReport, error) {
	query := `
		SELECT report
		FROM driver_reports
		WHERE id = $1
	`

	var reportJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// List возвращает последние отчёты, новые первыми.
func (r *ReportRepo) List(ctx context.Context, limit int) ([]domain.DriverReport, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}

	query := `
		SELECT report
		FROM driver_reports
		ORDER BY generated_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []domain.DriverReport{}
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func decodeReport(data []byte) (*domain.DriverReport, error) {
	var report domain.DriverReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
