package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
)

// JournalStore persists mediation outcomes in Postgres.
type JournalStore struct {
	db *pgxpool.Pool
}

func NewJournalStore(db *pgxpool.Pool) *JournalStore {
	return &JournalStore{db: db}
}

func (s *JournalStore) Append(ctx context.Context, o *domain.MediationOutcome) error {
	records, err := json.Marshal(o.Records)
	if err != nil {
		return err
	}
	options, err := json.Marshal(o.Options)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO mediation_sessions (id, status, records, options, selected, applied, persist_error, restart_required, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5::integer[], '{}'), COALESCE($6::text[], '{}'), $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		o.SessionID, o.Status, records, options, o.Selected, o.Applied, o.PersistError, o.RestartRequired, o.StartedAt, o.FinishedAt,
	)
	return err
}

func (s *JournalStore) List(ctx context.Context, limit int) ([]domain.MediationOutcome, error) {
	if limit <= 0 {
		limit = defaultJournalCapacity
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, status, records, options, selected, applied, persist_error, restart_required, started_at, finished_at
		 FROM mediation_sessions
		 ORDER BY finished_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []domain.MediationOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, rows.Err()
}

func (s *JournalStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MediationOutcome, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, status, records, options, selected, applied, persist_error, restart_required, started_at, finished_at
		 FROM mediation_sessions WHERE id = $1`,
		id,
	)
	o, err := scanOutcome(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func scanOutcome(row pgx.Row) (*domain.MediationOutcome, error) {
	var (
		o       domain.MediationOutcome
		records []byte
		options []byte
	)
	if err := row.Scan(&o.SessionID, &o.Status, &records, &options, &o.Selected, &o.Applied,
		&o.PersistError, &o.RestartRequired, &o.StartedAt, &o.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(records, &o.Records); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &o.Options); err != nil {
			return nil, err
		}
	}
	return &o, nil
}
