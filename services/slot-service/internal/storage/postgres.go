package storage

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Querier is the subset of pgxpool.Pool used by PostgresStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the slots table and its index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return errs.Wrap(err, "apply slots schema")
}

const slotColumns = `slot_id, to_char(slot_date, 'YYYY-MM-DD'), slot_time, status, claimant_contact, claimant_name, notes, updated_at`

func (s *PostgresStore) Get(ctx context.Context, slotID string) (model.Slot, error) {
	row := s.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE slot_id = $1`, slotID)
	slot, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Slot{}, errs.Mark(errs.Wrapf(err, "slot %q", slotID), model.ErrNotFound)
	}
	if err != nil {
		return model.Slot{}, errs.Wrap(err, "select slot")
	}
	return slot, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status model.Status) ([]model.Slot, error) {
	rows, err := s.db.Query(ctx, `SELECT `+slotColumns+` FROM slots WHERE status = $1`, string(status))
	if err != nil {
		return nil, errs.Wrap(err, "list slots by status")
	}
	return collectSlots(rows)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.Slot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		ORDER BY slot_date ASC, slot_time ASC, slot_id ASC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, errs.Wrap(err, "list slots")
	}
	return collectSlots(rows)
}

// ConditionalUpdate relies on row locking: a concurrent UPDATE on the same
// row waits for the first to commit and then re-checks the status predicate
// against the new row version, so only one caller matches.
func (s *PostgresStore) ConditionalUpdate(ctx context.Context, slotID string, u Update) (UpdateResult, model.Slot, error) {
	var contact, name, notes string
	setClaimant := u.Claimant != nil
	if setClaimant {
		contact, name, notes = u.Claimant.Contact, u.Claimant.Name, u.Claimant.Notes
	}

	row := s.db.QueryRow(ctx, `
		UPDATE slots
		SET status = $3,
			claimant_contact = CASE WHEN $4::boolean THEN $5 ELSE claimant_contact END,
			claimant_name = CASE WHEN $4::boolean THEN $6 ELSE claimant_name END,
			notes = CASE WHEN $4::boolean THEN $7 ELSE notes END,
			updated_at = now()
		WHERE slot_id = $1
			AND ($2::text = '' OR status = $2::text)
		RETURNING `+slotColumns,
		slotID, string(u.Expected), string(u.Status), setClaimant, contact, name, notes)

	slot, err := scanSlot(row)
	if err == nil {
		return UpdateOK, slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, model.Slot{}, errs.Wrap(err, "conditional update slot")
	}

	// Rows are never deleted, so an existing row here means the predicate failed.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE slot_id = $1)`, slotID).Scan(&exists); err != nil {
		return 0, model.Slot{}, errs.Wrap(err, "check slot existence")
	}
	if !exists {
		return UpdateNotFound, model.Slot{}, nil
	}
	return UpdatePreconditionFailed, model.Slot{}, nil
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, slot model.Slot) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO slots (slot_id, slot_date, slot_time, status, claimant_contact, claimant_name, notes)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		ON CONFLICT (slot_id) DO NOTHING
	`, slot.SlotID, slot.Date, slot.Time, string(slot.Status), slot.ClaimantContact, slot.ClaimantName, slot.Notes)
	if err != nil {
		return false, errs.Wrap(err, "insert slot")
	}
	return tag.RowsAffected() == 1, nil
}

func scanSlot(row pgx.Row) (model.Slot, error) {
	var slot model.Slot
	var status string
	if err := row.Scan(
		&slot.SlotID,
		&slot.Date,
		&slot.Time,
		&status,
		&slot.ClaimantContact,
		&slot.ClaimantName,
		&slot.Notes,
		&slot.UpdatedAt,
	); err != nil {
		return model.Slot{}, err
	}
	slot.Status = model.Status(status)
	return slot, nil
}

func collectSlots(rows pgx.Rows) ([]model.Slot, error) {
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan slot")
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate slots")
	}
	return slots, nil
}
