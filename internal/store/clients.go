package store

import (
	"context"
	"fmt"
)

// upsertClientSQL creates the client or refreshes it in place. NULLIF plus
// COALESCE keeps non-empty stored values when the incoming value is empty.
const upsertClientSQL = `
INSERT INTO clients (client_number, profile, status, company_name)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
ON CONFLICT (client_number) DO UPDATE SET
	profile      = COALESCE(NULLIF(EXCLUDED.profile, ''), clients.profile),
	status       = COALESCE(NULLIF(EXCLUDED.status, ''), clients.status),
	company_name = COALESCE(NULLIF(EXCLUDED.company_name, ''), clients.company_name),
	updated_at   = now()
`

// ClientStore upserts clients by business key.
type ClientStore struct{}

func NewClientStore() *ClientStore {
	return &ClientStore{}
}

// UpsertByNumber creates the client if absent, otherwise updates only the
// fields whose incoming value is non-empty. Idempotent per client number.
func (s *ClientStore) UpsertByNumber(ctx context.Context, db DBTX, c Client) error {
	if c.Number == "" {
		return fmt.Errorf("clients: client number required")
	}
	if _, err := db.Exec(ctx, upsertClientSQL, c.Number, c.Profile, c.Status, c.CompanyName); err != nil {
		return fmt.Errorf("clients: upsert %s: %w", c.Number, err)
	}
	return nil
}

// UpsertBatch upserts each distinct client in order within the caller's
// transaction.
func (s *ClientStore) UpsertBatch(ctx context.Context, db DBTX, clients []Client) error {
	for _, c := range clients {
		if err := s.UpsertByNumber(ctx, db, c); err != nil {
			return err
		}
	}
	return nil
}
