// Package postgres provides PostgreSQL repository implementations for the
// care scheduling engine.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/medication"
)

// MedicationRepository is a pgx-backed medication.MedicationRepository.
type MedicationRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new repository
func NewMedicationRepository(pool *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationRepository{pool: pool, logger: logger}
}

const medicationColumns = `
	id, user_id, name_fr, name_en, description_fr, description_en,
	notes_fr, notes_en, medication_type, frequency_type, specific_days,
	time_of_day, dosage_quantity, dosage_unit, meal_relation,
	current_stock, low_stock_threshold, notify_low_stock,
	start_date, end_date, is_active, created_at, updated_at
`

func (r *MedicationRepository) Insert(ctx context.Context, m *medication.Medication) error {
	query := `
		INSERT INTO medications (` + medicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := r.pool.Exec(ctx, query,
		m.ID, m.UserID, m.Name.FR, m.Name.EN, m.Description.FR, m.Description.EN,
		m.Notes.FR, m.Notes.EN, m.MedicationType, m.FrequencyType, m.SpecificDays,
		m.TimeOfDay, m.DosageQuantity, m.DosageUnit, m.MealRelation,
		m.CurrentStock, m.LowStockThreshold, m.NotifyLowStock,
		m.StartDate, m.EndDate, m.IsActive, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

func (r *MedicationRepository) FindByID(ctx context.Context, id, userID string) (*medication.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE id = $1 AND user_id = $2 AND is_active
	`
	m, err := scanMedication(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, medication.ErrNotFound
		}
		return nil, fmt.Errorf("find medication: %w", err)
	}
	return m, nil
}

func (r *MedicationRepository) FindActiveByUser(ctx context.Context, userID string) ([]*medication.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE user_id = $1 AND is_active
		ORDER BY created_at ASC
	`
	return r.queryMany(ctx, query, userID)
}

func (r *MedicationRepository) FindLowStock(ctx context.Context) ([]*medication.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE is_active
		  AND notify_low_stock
		  AND low_stock_threshold > 0
		  AND current_stock <= low_stock_threshold
		ORDER BY id ASC
	`
	return r.queryMany(ctx, query)
}

func (r *MedicationRepository) Update(ctx context.Context, m *medication.Medication) error {
	query := `
		UPDATE medications SET
			name_fr = $2, name_en = $3, description_fr = $4, description_en = $5,
			notes_fr = $6, notes_en = $7, medication_type = $8, frequency_type = $9,
			specific_days = $10, time_of_day = $11, dosage_quantity = $12,
			dosage_unit = $13, meal_relation = $14, current_stock = $15,
			low_stock_threshold = $16, notify_low_stock = $17,
			start_date = $18, end_date = $19, updated_at = $20
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		m.ID, m.Name.FR, m.Name.EN, m.Description.FR, m.Description.EN,
		m.Notes.FR, m.Notes.EN, m.MedicationType, m.FrequencyType,
		m.SpecificDays, m.TimeOfDay, m.DosageQuantity,
		m.DosageUnit, m.MealRelation, m.CurrentStock,
		m.LowStockThreshold, m.NotifyLowStock,
		m.StartDate, m.EndDate, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return medication.ErrNotFound
	}
	return nil
}

func (r *MedicationRepository) UpdateStock(ctx context.Context, id string, stock int) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE medications SET current_stock = $2, updated_at = NOW() WHERE id = $1",
		id, stock)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return medication.ErrNotFound
	}
	return nil
}

func (r *MedicationRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE medications SET is_active = FALSE, updated_at = NOW() WHERE id = $1",
		id)
	if err != nil {
		return fmt.Errorf("deactivate medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return medication.ErrNotFound
	}
	return nil
}

func (r *MedicationRepository) queryMany(ctx context.Context, query string, args ...any) ([]*medication.Medication, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query medications: %w", err)
	}
	defer rows.Close()

	var out []*medication.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMedication(row pgx.Row) (*medication.Medication, error) {
	m := &medication.Medication{}
	err := row.Scan(
		&m.ID, &m.UserID, &m.Name.FR, &m.Name.EN, &m.Description.FR, &m.Description.EN,
		&m.Notes.FR, &m.Notes.EN, &m.MedicationType, &m.FrequencyType, &m.SpecificDays,
		&m.TimeOfDay, &m.DosageQuantity, &m.DosageUnit, &m.MealRelation,
		&m.CurrentStock, &m.LowStockThreshold, &m.NotifyLowStock,
		&m.StartDate, &m.EndDate, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
