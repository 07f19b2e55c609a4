// services/sync_store.go
package services

import (
	"context"
	"fmt"
	"time"

	"partnership-sync/logger"
	"partnership-sync/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns overwritten when an incoming record hits an existing guid.
// created_at is handled separately: the first non-null value ever stored wins.
var (
	customerUpdateColumns = []string{
		"name", "username", "email", "phone_number", "is_email_verified", "is_phone_verified",
		"city", "province", "company_name", "industry", "industry_slug", "employee_count",
		"needs", "referral_code", "products", "source_updated_at", "updated_at",
	}
	transactionUpdateColumns = []string{
		"customer_guid", "invoice_number", "status", "currency",
		"sub_total", "fee", "discount", "grand_total",
		"payment_channel_code", "payment_channel_name", "paid_at", "source_updated_at", "updated_at",
	}
	detailUpdateColumns = []string{
		"transaction_guid", "product_guid", "product_name", "merchant_guid", "merchant_name",
		"price", "quantity", "total", "updated_at",
	}
	creditUsageUpdateColumns = []string{
		"customer_guid", "type", "amount", "product_name", "description", "updated_at",
	}
)

// SyncStore is the upsert engine. It is the only writer of the synced tables
// and relies on guid-keyed idempotent upserts rather than locking.
type SyncStore struct {
	DB  *gorm.DB
	now func() time.Time
}

// NewSyncStore wraps an opened gorm handle.
func NewSyncStore(db *gorm.DB) *SyncStore {
	return &SyncStore{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

func onConflictGUID(table string, columns []string) clause.OnConflict {
	set := clause.AssignmentColumns(columns)
	set = append(set, preserveCreatedAt(table))
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "guid"}},
		DoUpdates: set,
	}
}

func preserveCreatedAt(table string) clause.Assignment {
	return clause.Assignment{
		Column: clause.Column{Name: "created_at"},
		Value:  gorm.Expr(fmt.Sprintf("COALESCE(%s.created_at, excluded.created_at)", table)),
	}
}

// UpsertCustomer inserts or overwrites one customer keyed on guid.
func (s *SyncStore) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	c.UpdatedAt = s.now()
	err := s.DB.WithContext(ctx).
		Clauses(onConflictGUID("customers", customerUpdateColumns)).
		Create(c).Error
	if err != nil {
		return &UpsertError{Entity: "customer", GUID: c.GUID, Err: err}
	}
	return nil
}

// upsertEmbeddedCustomer writes customer data embedded in another payload.
// Such payloads are partial, so existing values are only replaced by
// non-empty incoming ones.
func (s *SyncStore) upsertEmbeddedCustomer(ctx context.Context, c *models.Customer) error {
	c.UpdatedAt = s.now()
	set := clause.Set{preserveCreatedAt("customers")}
	for _, col := range []string{"name", "email", "phone_number", "username"} {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(NULLIF(excluded.%[1]s, ''), customers.%[1]s)", col)),
		})
	}
	set = append(set, clause.Assignment{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")})

	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "guid"}}, DoUpdates: set}).
		Create(c).Error
}

// UpsertTransaction writes a transaction and its line items in one database
// transaction. Each line item runs under its own savepoint: a failing item is
// rolled back alone and reported in the returned warnings while the parent and
// its other items commit. Embedded customer data is written first, outside the
// transaction, and its failure is only a warning.
func (s *SyncStore) UpsertTransaction(ctx context.Context, rec TransactionRecord) ([]error, error) {
	log := logger.FromContext(ctx)
	var warnings []error

	if rec.Customer != nil {
		if err := s.upsertEmbeddedCustomer(ctx, rec.Customer); err != nil {
			warnings = append(warnings, &UpsertError{Entity: "customer", GUID: rec.Customer.GUID, Err: err})
			log.Warn().Err(err).
				Str("customer_guid", rec.Customer.GUID).
				Str("transaction_guid", rec.Transaction.GUID).
				Msg("embedded customer upsert failed, continuing with transaction")
		}
	}

	now := s.now()
	tx := rec.Transaction
	details := tx.Details
	tx.Details = nil
	tx.UpdatedAt = now

	err := s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Omit(clause.Associations).
			Clauses(onConflictGUID("transactions", transactionUpdateColumns)).
			Create(&tx).Error; err != nil {
			return err
		}

		for i := range details {
			d := &details[i]
			if d.TransactionGUID == "" {
				d.TransactionGUID = tx.GUID
			}
			d.UpdatedAt = now

			sp := fmt.Sprintf("detail_%d", i)
			if err := db.SavePoint(sp).Error; err != nil {
				return err
			}
			if err := db.Clauses(onConflictGUID("transaction_details", detailUpdateColumns)).Create(d).Error; err != nil {
				if rbErr := db.RollbackTo(sp).Error; rbErr != nil {
					return fmt.Errorf("rollback line item %s: %w", d.GUID, rbErr)
				}
				warnings = append(warnings, &UpsertError{Entity: "transaction_detail", GUID: d.GUID, Err: err})
				log.Warn().Err(err).
					Str("detail_guid", d.GUID).
					Str("transaction_guid", tx.GUID).
					Msg("line item upsert failed, keeping parent transaction")
			}
		}
		return nil
	})
	if err != nil {
		return warnings, &UpsertError{Entity: "transaction", GUID: tx.GUID, Err: err}
	}
	return warnings, nil
}

// UpsertCreditUsage inserts or overwrites one credit ledger entry.
func (s *SyncStore) UpsertCreditUsage(ctx context.Context, u *models.CreditUsage) error {
	u.UpdatedAt = s.now()
	err := s.DB.WithContext(ctx).
		Clauses(onConflictGUID("credit_usages", creditUsageUpdateColumns)).
		Create(u).Error
	if err != nil {
		return &UpsertError{Entity: "credit_usage", GUID: u.GUID, Err: err}
	}
	return nil
}

// LatestCreatedAt returns the newest stored created_at of model's table, or
// nil when the table has no dated rows.
func (s *SyncStore) LatestCreatedAt(ctx context.Context, model interface{}) (*time.Time, error) {
	var row struct {
		CreatedAt *time.Time
	}
	err := s.DB.WithContext(ctx).
		Model(model).
		Select("created_at").
		Where("created_at IS NOT NULL").
		Order("created_at DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("query latest created_at: %w", err)
	}
	return row.CreatedAt, nil
}

// UpsertPartners seeds the partner table keyed on code.
func (s *SyncStore) UpsertPartners(ctx context.Context, partners []models.Partner) error {
	if len(partners) == 0 {
		return nil
	}
	now := s.now()
	for i := range partners {
		partners[i].Code = NormalizeCode(partners[i].Code)
		partners[i].UpdatedAt = now
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "is_government", "updated_at"}),
		}).
		Create(&partners).Error
}
