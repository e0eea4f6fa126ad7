package attestation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"erthid/pkg/sentinel"
)

// Attestation is one append-only record of a completed registration
// broadcast. It stores only the identity hash, never the identity itself.
type Attestation struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	IDHash    string    `json:"id_hash"`
	TxHash    string    `json:"tx_hash"`
	Code      uint32    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists attestations in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store on an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the attestations table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS attestations (
			id UUID PRIMARY KEY,
			address TEXT NOT NULL,
			id_hash TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			code BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_attestations_address ON attestations (address);
		CREATE INDEX IF NOT EXISTS idx_attestations_id_hash ON attestations (id_hash);
	`)
	if err != nil {
		return fmt.Errorf("ensure attestations schema: %w", err)
	}
	return nil
}

// Append records a completed broadcast. Records are never updated or
// deleted.
func (s *Store) Append(ctx context.Context, address, idHash, txHash string, code uint32) (*Attestation, error) {
	att := &Attestation{
		ID:      uuid.New(),
		Address: address,
		IDHash:  idHash,
		TxHash:  txHash,
		Code:    code,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO attestations (id, address, id_hash, tx_hash, code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, att.ID, att.Address, att.IDHash, att.TxHash, att.Code).Scan(&att.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append attestation: %w", err)
	}
	return att, nil
}

// ListRecent returns the most recent attestations, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Attestation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, address, id_hash, tx_hash, code, created_at
		FROM attestations
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list attestations: %w", err)
	}
	defer rows.Close()

	var out []Attestation
	for rows.Next() {
		var att Attestation
		if err := rows.Scan(&att.ID, &att.Address, &att.IDHash, &att.TxHash, &att.Code, &att.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attestation: %w", err)
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// FindByAddress returns the newest attestation for an address.
func (s *Store) FindByAddress(ctx context.Context, address string) (*Attestation, error) {
	var att Attestation
	err := s.pool.QueryRow(ctx, `
		SELECT id, address, id_hash, tx_hash, code, created_at
		FROM attestations
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, address).Scan(&att.ID, &att.Address, &att.IDHash, &att.TxHash, &att.Code, &att.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find attestation: %w", err)
	}
	return &att, nil
}
