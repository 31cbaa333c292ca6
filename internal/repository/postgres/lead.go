package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/lead-refinery/internal/domain"
	"github.com/ignite/lead-refinery/internal/leadnorm"
	"github.com/ignite/lead-refinery/internal/pkg/logger"
	"github.com/ignite/lead-refinery/internal/table"
)

// LeadRepo stores the merged master lead list.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

// UpsertBatch writes leads in one transaction, a savepoint per row so one
// bad row cannot sink the batch. Rows missing both an email and a usable
// (company, exhibition) key are counted as failed. Returns (imported, failed).
func (r *LeadRepo) UpsertBatch(ctx context.Context, leads []domain.Lead) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin lead batch: %w", err)
	}

	imported, failed := 0, 0
	for _, lead := range leads {
		if lead.Email == "" && (lead.Company == "" || lead.Exhibition == "") {
			failed++
			continue
		}
		if _, err := tx.ExecContext(ctx, "SAVEPOINT lead_sp"); err != nil {
			failed++
			continue
		}

		if lead.ID == "" {
			lead.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO refinery_leads
				(id, email, company, contact, exhibition, industry, tel, source_file, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (email, company, exhibition) DO UPDATE SET
				contact = EXCLUDED.contact,
				industry = EXCLUDED.industry,
				tel = EXCLUDED.tel,
				source_file = EXCLUDED.source_file,
				updated_at = EXCLUDED.updated_at`,
			lead.ID, lead.Email, lead.Company, lead.Contact,
			lead.Exhibition, lead.Industry, lead.Tel,
			lead.SourceFile, lead.UpdatedAt)
		if err != nil {
			tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT lead_sp")
			failed++
			continue
		}

		tx.ExecContext(ctx, "RELEASE SAVEPOINT lead_sp")
		imported++
	}

	if err := tx.Commit(); err != nil {
		logger.Error("lead batch commit failed", "error", err.Error())
		return 0, len(leads), fmt.Errorf("commit lead batch: %w", err)
	}
	return imported, failed, nil
}

// Count returns the total number of stored leads.
func (r *LeadRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refinery_leads`).Scan(&n)
	return n, err
}

// LeadsFromTable converts a merged lead table to domain leads, mapping the
// canonical Japanese headers onto struct fields.
func LeadsFromTable(t *table.Table, now time.Time) []domain.Lead {
	leads := make([]domain.Lead, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		leads = append(leads, domain.Lead{
			Email:      strings.TrimSpace(t.Value(r, leadnorm.ColEmail)),
			Company:    strings.TrimSpace(t.Value(r, leadnorm.ColCompany)),
			Contact:    strings.TrimSpace(t.Value(r, leadnorm.ColContact)),
			Exhibition: strings.TrimSpace(t.Value(r, leadnorm.ColExhibition)),
			Industry:   strings.TrimSpace(t.Value(r, leadnorm.ColIndustry)),
			Tel:        strings.TrimSpace(t.Value(r, leadnorm.ColTel)),
			SourceFile: strings.TrimSpace(t.Value(r, leadnorm.ColSourceFile)),
			UpdatedAt:  now,
		})
	}
	return leads
}
