package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/contactflow/importer/internal/contact"
)

const insertContactSQL = `
INSERT INTO contacts (client_number, last_name, first_name, company_name, role, email, phone, profile, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// ContactStore bulk-inserts contact records.
type ContactStore struct{}

func NewContactStore() *ContactStore {
	return &ContactStore{}
}

// BulkInsert queues every candidate into one pgx batch and sends it over a
// single round trip inside the caller's transaction. The first failing
// insert aborts the batch; the caller decides whether to fall back to
// per-record commits.
func (s *ContactStore) BulkInsert(ctx context.Context, db DBTX, contacts []contact.Candidate) error {
	if len(contacts) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, c := range contacts {
		b.Queue(insertContactSQL,
			c.ClientNumber, c.LastName, c.FirstName, c.CompanyName,
			c.Role, c.Email, c.Phone, c.Profile, c.Status)
	}

	br := db.SendBatch(ctx, b)
	defer br.Close()

	for i := range contacts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("contacts: insert %d of %d: %w", i+1, len(contacts), err)
		}
	}
	return br.Close()
}

// Insert persists a single candidate, used by the per-record fallback path.
func (s *ContactStore) Insert(ctx context.Context, db DBTX, c contact.Candidate) error {
	if _, err := db.Exec(ctx, insertContactSQL,
		c.ClientNumber, c.LastName, c.FirstName, c.CompanyName,
		c.Role, c.Email, c.Phone, c.Profile, c.Status); err != nil {
		return fmt.Errorf("contacts: insert %s: %w", c.ClientNumber, err)
	}
	return nil
}
