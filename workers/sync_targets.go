// workers/sync_targets.go
package workers

import (
	"context"
	"encoding/json"
	"time"

	"partnership-sync/models"
	"partnership-sync/services"
)

type customerTarget struct {
	store    SyncStore
	endpoint Endpoint
}

func (t customerTarget) Entity() string     { return "customers" }
func (t customerTarget) Endpoint() Endpoint { return t.endpoint }

func (t customerTarget) Normalize(raw json.RawMessage) (models.Customer, error) {
	return services.NormalizeCustomer(raw)
}

func (t customerTarget) Identifier(c models.Customer) string { return c.GUID }

func (t customerTarget) Upsert(ctx context.Context, c models.Customer) ([]error, error) {
	return nil, t.store.UpsertCustomer(ctx, &c)
}

func (t customerTarget) LatestCreatedAt(ctx context.Context) (*time.Time, error) {
	return t.store.LatestCreatedAt(ctx, &models.Customer{})
}

type transactionTarget struct {
	store    SyncStore
	endpoint Endpoint
}

func (t transactionTarget) Entity() string     { return "transactions" }
func (t transactionTarget) Endpoint() Endpoint { return t.endpoint }

func (t transactionTarget) Normalize(raw json.RawMessage) (services.TransactionRecord, error) {
	return services.NormalizeTransaction(raw)
}

func (t transactionTarget) Identifier(rec services.TransactionRecord) string {
	return rec.Transaction.GUID
}

// Upsert folds line items the normalizer already rejected into the warnings,
// so they are counted as child errors like line items the database refused.
func (t transactionTarget) Upsert(ctx context.Context, rec services.TransactionRecord) ([]error, error) {
	warnings := append([]error(nil), rec.DetailErrors...)
	more, err := t.store.UpsertTransaction(ctx, rec)
	return append(warnings, more...), err
}

func (t transactionTarget) LatestCreatedAt(ctx context.Context) (*time.Time, error) {
	return t.store.LatestCreatedAt(ctx, &models.Transaction{})
}

type usageTarget struct {
	store    SyncStore
	endpoint Endpoint
}

func (t usageTarget) Entity() string     { return "usage" }
func (t usageTarget) Endpoint() Endpoint { return t.endpoint }

func (t usageTarget) Normalize(raw json.RawMessage) (models.CreditUsage, error) {
	return services.NormalizeCreditUsage(raw)
}

func (t usageTarget) Identifier(u models.CreditUsage) string { return u.GUID }

func (t usageTarget) Upsert(ctx context.Context, u models.CreditUsage) ([]error, error) {
	return nil, t.store.UpsertCreditUsage(ctx, &u)
}

func (t usageTarget) LatestCreatedAt(ctx context.Context) (*time.Time, error) {
	return t.store.LatestCreatedAt(ctx, &models.CreditUsage{})
}
