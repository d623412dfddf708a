package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/domain/medication"
)

// HistoryRepository is a pgx-backed medication.HistoryRepository.
type HistoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewHistoryRepository creates a new repository
func NewHistoryRepository(pool *pgxpool.Pool, logger *zap.Logger) *HistoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRepository{pool: pool, logger: logger}
}

func (r *HistoryRepository) Insert(ctx context.Context, h *medication.MedicationHistory) error {
	query := `
		INSERT INTO medication_history
		(id, medication_id, user_id, taken_at, quantity_taken, scheduled_time, skipped, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		h.ID, h.MedicationID, h.UserID, h.TakenAt, h.QuantityTaken,
		h.ScheduledTime, h.Skipped, h.Notes, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Find(ctx context.Context, f medication.HistoryFilter) ([]*medication.MedicationHistory, error) {
	var (
		where = []string{"TRUE"}
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, cond+" $"+strconv.Itoa(len(args)))
	}
	if f.MedicationID != "" {
		add("medication_id =", f.MedicationID)
	}
	if f.UserID != "" {
		add("user_id =", f.UserID)
	}
	if f.From != nil {
		add("taken_at >=", *f.From)
	}
	if f.To != nil {
		add("taken_at <=", *f.To)
	}

	query := `
		SELECT id, medication_id, user_id, taken_at, quantity_taken,
		       scheduled_time, skipped, notes, created_at
		FROM medication_history
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY taken_at DESC
	`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*medication.MedicationHistory
	for rows.Next() {
		h := &medication.MedicationHistory{}
		err := rows.Scan(
			&h.ID, &h.MedicationID, &h.UserID, &h.TakenAt, &h.QuantityTaken,
			&h.ScheduledTime, &h.Skipped, &h.Notes, &h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *HistoryRepository) DeleteByMedication(ctx context.Context, medicationID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM medication_history WHERE medication_id = $1", medicationID)
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StockHistoryRepository is a pgx-backed medication.StockHistoryRepository.
type StockHistoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStockHistoryRepository creates a new repository
func NewStockHistoryRepository(pool *pgxpool.Pool, logger *zap.Logger) *StockHistoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockHistoryRepository{pool: pool, logger: logger}
}

func (r *StockHistoryRepository) Insert(ctx context.Context, h *medication.StockHistory) error {
	query := `
		INSERT INTO stock_history
		(id, medication_id, user_id, previous_stock, new_stock, change_amount, change_type, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		h.ID, h.MedicationID, h.UserID, h.PreviousStock, h.NewStock,
		h.ChangeAmount, h.Type, h.Notes, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock entry: %w", err)
	}
	return nil
}

func (r *StockHistoryRepository) FindByMedication(ctx context.Context, medicationID string) ([]*medication.StockHistory, error) {
	query := `
		SELECT id, medication_id, user_id, previous_stock, new_stock,
		       change_amount, change_type, notes, created_at
		FROM stock_history
		WHERE medication_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, medicationID)
	if err != nil {
		return nil, fmt.Errorf("query stock history: %w", err)
	}
	defer rows.Close()

	var out []*medication.StockHistory
	for rows.Next() {
		h := &medication.StockHistory{}
		err := rows.Scan(
			&h.ID, &h.MedicationID, &h.UserID, &h.PreviousStock, &h.NewStock,
			&h.ChangeAmount, &h.Type, &h.Notes, &h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stock entry: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *StockHistoryRepository) DeleteByMedication(ctx context.Context, medicationID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM stock_history WHERE medication_id = $1", medicationID)
	if err != nil {
		return 0, fmt.Errorf("delete stock history: %w", err)
	}
	return tag.RowsAffected(), nil
}
