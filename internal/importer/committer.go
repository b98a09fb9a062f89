package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/contactflow/importer/internal/contact"
	"github.com/contactflow/importer/internal/store"
)

// TxBeginner starts transactions. Satisfied by *pgxpool.Pool and pgxmock.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BatchCommitter persists a whole batch atomically. A non-nil error means
// nothing from the batch was persisted.
type BatchCommitter interface {
	CommitBatch(ctx context.Context, batch []contact.Candidate) error
}

// Committer writes a batch in one transaction: the batch's distinct clients
// are upserted first, then every contact is inserted. Any failure rolls the
// whole batch back.
type Committer struct {
	db       TxBeginner
	clients  *store.ClientStore
	contacts *store.ContactStore
	log      *slog.Logger
}

func NewCommitter(db TxBeginner, clients *store.ClientStore, contacts *store.ContactStore, log *slog.Logger) *Committer {
	if log == nil {
		log = slog.Default()
	}
	return &Committer{db: db, clients: clients, contacts: contacts, log: log}
}

func (c *Committer) CommitBatch(ctx context.Context, batch []contact.Candidate) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("batch commit: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := c.clients.UpsertBatch(ctx, tx, mergeClients(batch)); err != nil {
		return fmt.Errorf("batch commit: %w", err)
	}
	if err := c.contacts.BulkInsert(ctx, tx, batch); err != nil {
		return fmt.Errorf("batch commit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("batch commit: commit: %w", err)
	}
	return nil
}

// mergeClients collapses the batch into one client per client number,
// keeping first-seen order. A later row's non-empty field fills a gap left
// by an earlier row, so the upsert sees the most complete values the batch
// can offer.
func mergeClients(batch []contact.Candidate) []store.Client {
	index := make(map[string]int, len(batch))
	merged := make([]store.Client, 0, len(batch))

	for _, cand := range batch {
		i, seen := index[cand.ClientNumber]
		if !seen {
			index[cand.ClientNumber] = len(merged)
			merged = append(merged, store.Client{
				Number:      cand.ClientNumber,
				Profile:     cand.Profile,
				Status:      cand.Status,
				CompanyName: cand.CompanyName,
			})
			continue
		}
		if merged[i].Profile == "" {
			merged[i].Profile = cand.Profile
		}
		if merged[i].Status == "" {
			merged[i].Status = cand.Status
		}
		if merged[i].CompanyName == "" {
			merged[i].CompanyName = cand.CompanyName
		}
	}
	return merged
}
