package workers

import (
	"context"
	"time"

	"partnership-sync/models"
	"partnership-sync/services"
)

// PageFetcher is the remote source as seen by the coordinator.
//
//go:generate mockgen -destination=mocks/mock_interface.go -source=interface.go
type PageFetcher interface {
	FetchPage(ctx context.Context, req services.PageRequest) (*services.Page, error)
}

// PageArchiver keeps a copy of raw pages. Archive failures never fail a run.
type PageArchiver interface {
	ArchivePage(ctx context.Context, entity, runID string, page int, body []byte) error
}

// SyncStore is the storage handle the sync targets write through.
type SyncStore interface {
	UpsertCustomer(ctx context.Context, c *models.Customer) error
	UpsertTransaction(ctx context.Context, rec services.TransactionRecord) ([]error, error)
	UpsertCreditUsage(ctx context.Context, u *models.CreditUsage) error
	LatestCreatedAt(ctx context.Context, model interface{}) (*time.Time, error)
}
