// services/customer_query.go
package services

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"partnership-sync/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is shared by the read views.
type Pagination struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Pagination) offset() int { return (p.Page - 1) * p.Size }

// CustomerFilter narrows the customer listing.
type CustomerFilter struct {
	Search       string
	ReferralCode string
	PartnerType  string // "government" or "non_government"
	IndustrySlug string
	Status       ActivityStatus
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Pagination
}

// CustomerView is a customer joined with its partner, credit totals and the
// derived activity status.
type CustomerView struct {
	models.Customer
	PartnerName         *string         `json:"partner_name"`
	PartnerIsGovernment *bool           `json:"partner_is_government"`
	TotalCredit         decimal.Decimal `json:"total_credit"`
	TotalDebit          decimal.Decimal `json:"total_debit"`
	CreditBalance       decimal.Decimal `json:"credit_balance" gorm:"-"`
	LastDebitAt         scannedTime     `json:"last_debit_at"`
	ActivityStatus      ActivityStatus  `json:"activity_status" gorm:"-"`
}

// CustomerPage is one page of the customer listing.
type CustomerPage struct {
	Items []CustomerView `json:"items"`
	Total int64          `json:"total"`
	Pagination
}

// CustomerDetail adds recent transactions and decoded products.
type CustomerDetail struct {
	CustomerView
	ProductList        []models.CustomerProduct `json:"product_list"`
	RecentTransactions []models.Transaction     `json:"recent_transactions"`
}

// CustomerQueryService serves the read-only customer views.
type CustomerQueryService struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewCustomerQueryService(db *gorm.DB) *CustomerQueryService {
	return &CustomerQueryService{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *CustomerQueryService) creditTotals(db *gorm.DB) *gorm.DB {
	return db.Table("credit_usages").
		Select(`customer_guid,
			SUM(CASE WHEN type = ? THEN amount ELSE 0 END) AS total_credit,
			SUM(CASE WHEN type = ? THEN amount ELSE 0 END) AS total_debit,
			MAX(CASE WHEN type = ? THEN created_at END) AS last_debit_at`,
			models.CreditUsageCredit, models.CreditUsageDebit, models.CreditUsageDebit).
		Where("customer_guid IS NOT NULL").
		Group("customer_guid")
}

func (s *CustomerQueryService) base(ctx context.Context, f CustomerFilter, now time.Time) *gorm.DB {
	db := s.DB.WithContext(ctx)
	q := db.Table("customers AS c").
		Joins("LEFT JOIN partners p ON p.code = c.referral_code").
		Joins("LEFT JOIN (?) AS u ON u.customer_guid = c.guid", s.creditTotals(db.Session(&gorm.Session{NewDB: true})))

	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(c.name) LIKE ? OR LOWER(c.email) LIKE ? OR LOWER(c.company_name) LIKE ? OR LOWER(c.username) LIKE ?", like, like, like, like)
	}
	if f.ReferralCode != "" {
		q = q.Where("c.referral_code = ?", NormalizeCode(f.ReferralCode))
	}
	switch f.PartnerType {
	case "government":
		q = q.Where("p.is_government = ?", true)
	case "non_government":
		q = q.Where("p.is_government = ?", false)
	}
	if f.IndustrySlug != "" {
		q = q.Where("c.industry_slug = ?", f.IndustrySlug)
	}
	if f.CreatedFrom != nil {
		q = q.Where("c.created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("c.created_at < ?", *f.CreatedTo)
	}

	activeSince, idleSince := ActivityCutoffs(now)
	switch f.Status {
	case ActivityActive:
		q = q.Where("u.last_debit_at >= ?", activeSince)
	case ActivityIdle:
		q = q.Where("u.last_debit_at < ? AND u.last_debit_at >= ?", activeSince, idleSince)
	case ActivityPassive:
		q = q.Where("u.last_debit_at IS NULL OR u.last_debit_at < ?", idleSince)
	}
	return q
}

const customerViewColumns = `c.*, p.name AS partner_name, p.is_government AS partner_is_government,
	COALESCE(u.total_credit, 0) AS total_credit, COALESCE(u.total_debit, 0) AS total_debit, u.last_debit_at`

// ListCustomers returns one filtered page of customers.
func (s *CustomerQueryService) ListCustomers(ctx context.Context, f CustomerFilter) (*CustomerPage, error) {
	f.Pagination = f.Pagination.normalize()
	now := s.now()

	var total int64
	if err := s.base(ctx, f, now).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}

	var rows []CustomerView
	err := s.base(ctx, f, now).
		Select(customerViewColumns).
		Order("c.created_at DESC NULLS LAST").
		Order("c.id DESC").
		Limit(f.Size).
		Offset(f.offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	for i := range rows {
		rows[i].derive(now)
	}
	if rows == nil {
		rows = []CustomerView{}
	}
	return &CustomerPage{Items: rows, Total: total, Pagination: f.Pagination}, nil
}

// GetCustomer returns one customer with its last transactions, or
// gorm.ErrRecordNotFound.
func (s *CustomerQueryService) GetCustomer(ctx context.Context, guid string) (*CustomerDetail, error) {
	now := s.now()
	var rows []CustomerView
	err := s.base(ctx, CustomerFilter{}, now).
		Select(customerViewColumns).
		Where("c.guid = ?", guid).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", guid, err)
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	view := rows[0]
	view.derive(now)

	detail := &CustomerDetail{CustomerView: view}
	if len(view.Products) > 0 {
		if err := json.Unmarshal(view.Products, &detail.ProductList); err != nil {
			return nil, fmt.Errorf("decode products of %s: %w", guid, err)
		}
	}
	if err := s.DB.WithContext(ctx).
		Where("customer_guid = ?", guid).
		Order("created_at DESC").
		Limit(10).
		Find(&detail.RecentTransactions).Error; err != nil {
		return nil, fmt.Errorf("recent transactions of %s: %w", guid, err)
	}
	return detail, nil
}

// ActivitySummary counts customers per activity status.
func (s *CustomerQueryService) ActivitySummary(ctx context.Context) (map[ActivityStatus]int64, error) {
	now := s.now()
	out := make(map[ActivityStatus]int64, 3)
	for _, status := range []ActivityStatus{ActivityActive, ActivityIdle, ActivityPassive} {
		var n int64
		if err := s.base(ctx, CustomerFilter{Status: status}, now).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s customers: %w", status, err)
		}
		out[status] = n
	}
	return out, nil
}

func (v *CustomerView) derive(now time.Time) {
	v.CreditBalance = v.TotalCredit.Sub(v.TotalDebit)
	v.ActivityStatus = ClassifyActivity(v.LastDebitAt.Time, now)
}

// scannedTime accepts the time types drivers return for aggregated columns:
// time.Time from Postgres, text from SQLite.
type scannedTime struct {
	Time *time.Time
}

func (t *scannedTime) Scan(v interface{}) error {
	switch x := v.(type) {
	case nil:
		t.Time = nil
	case time.Time:
		u := x.UTC()
		t.Time = &u
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", v)
	}
	return nil
}

func (t *scannedTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = nil
		return nil
	}
	if parsed, ok := parseTimestamp(s); ok {
		t.Time = &parsed
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999 -0700 MST"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			u := parsed.UTC()
			t.Time = &u
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t scannedTime) Value() (driver.Value, error) {
	if t.Time == nil {
		return nil, nil
	}
	return *t.Time, nil
}

func (t scannedTime) MarshalJSON() ([]byte, error) {
	if t.Time == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}
