package importer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/contactflow/importer/internal/contact"
	"github.com/contactflow/importer/internal/store"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// FallbackStrategy replays a batch record by record after the atomic commit
// failed, crediting each outcome to the aggregator. It returns how many
// records were persisted; the remainder of the batch failed.
type FallbackStrategy interface {
	Replay(ctx context.Context, batch []contact.Candidate, agg *contact.Aggregator) int
}

// PerRecordFallback commits each record in its own small transaction so one
// bad row no longer poisons its batch. Failed rows are classified by the
// database error and counted individually.
type PerRecordFallback struct {
	db       TxBeginner
	clients  *store.ClientStore
	contacts *store.ContactStore
	log      *slog.Logger
}

func NewPerRecordFallback(db TxBeginner, clients *store.ClientStore, contacts *store.ContactStore, log *slog.Logger) *PerRecordFallback {
	if log == nil {
		log = slog.Default()
	}
	return &PerRecordFallback{db: db, clients: clients, contacts: contacts, log: log}
}

func (f *PerRecordFallback) Replay(ctx context.Context, batch []contact.Candidate, agg *contact.Aggregator) int {
	succeeded := 0
	for _, cand := range batch {
		if err := f.commitOne(ctx, cand); err != nil {
			reason, detail := classifyCommitError(err)
			agg.AddRejection(reason, detail)
			continue
		}
		agg.AddSuccess(1)
		succeeded++
	}
	return succeeded
}

func (f *PerRecordFallback) commitOne(ctx context.Context, cand contact.Candidate) error {
	tx, err := f.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	client := store.Client{
		Number:      cand.ClientNumber,
		Profile:     cand.Profile,
		Status:      cand.Status,
		CompanyName: cand.CompanyName,
	}
	if err := f.clients.UpsertByNumber(ctx, tx, client); err != nil {
		return err
	}
	if err := f.contacts.Insert(ctx, tx, cand); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// classifyCommitError maps a per-record commit failure onto a rejection
// reason. Unique violations are attributed to phone, email or client number
// by the constraint name; everything else counts as an other error and keeps
// its message for the result's detail list.
func classifyCommitError(err error) (contact.RejectReason, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		name := strings.ToLower(pgErr.ConstraintName)
		switch {
		case strings.Contains(name, "phone"):
			return contact.ReasonDuplicatePhone, ""
		case strings.Contains(name, "email"):
			return contact.ReasonDuplicateEmail, ""
		case strings.Contains(name, "client"):
			return contact.ReasonDuplicateClientNumber, ""
		}
	}
	return contact.ReasonOther, err.Error()
}
