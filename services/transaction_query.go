// services/transaction_query.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"partnership-sync/models"

	"gorm.io/gorm"
)

// TransactionFilter narrows the transaction listing.
type TransactionFilter struct {
	Search       string // invoice number, customer name or email
	Status       string // compared case-insensitively
	CustomerGUID string
	Currency     string
	From         *time.Time
	To           *time.Time
	Pagination
}

// TransactionView is a transaction with the customer's display fields and its
// line items.
type TransactionView struct {
	models.Transaction
	CustomerName    *string `json:"customer_name"`
	CustomerEmail   *string `json:"customer_email"`
	CustomerPhone   *string `json:"customer_phone"`
	CustomerCompany *string `json:"customer_company"`
	IsSuccess       bool    `json:"is_success" gorm:"-"`
}

// TransactionPage is one page of the transaction listing.
type TransactionPage struct {
	Items []TransactionView `json:"items"`
	Total int64             `json:"total"`
	Pagination
}

// TransactionQueryService serves the read-only transaction views.
type TransactionQueryService struct {
	DB *gorm.DB
}

func NewTransactionQueryService(db *gorm.DB) *TransactionQueryService {
	return &TransactionQueryService{DB: db}
}

func (s *TransactionQueryService) base(ctx context.Context, f TransactionFilter) *gorm.DB {
	q := s.DB.WithContext(ctx).
		Table("transactions AS t").
		Joins("LEFT JOIN customers c ON c.guid = t.customer_guid")

	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(t.invoice_number) LIKE ? OR LOWER(c.name) LIKE ? OR LOWER(c.email) LIKE ?", like, like, like)
	}
	if status := strings.TrimSpace(f.Status); status != "" {
		q = q.Where("LOWER(t.status) = ?", strings.ToLower(status))
	}
	if f.CustomerGUID != "" {
		q = q.Where("t.customer_guid = ?", f.CustomerGUID)
	}
	if f.Currency != "" {
		q = q.Where("t.currency = ?", NormalizeCurrency(f.Currency))
	}
	if f.From != nil {
		q = q.Where("t.created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("t.created_at < ?", *f.To)
	}
	return q
}

const transactionViewColumns = `t.*, c.name AS customer_name, c.email AS customer_email,
	c.phone_number AS customer_phone, c.company_name AS customer_company`

// ListTransactions returns one filtered page of transactions with line items.
func (s *TransactionQueryService) ListTransactions(ctx context.Context, f TransactionFilter) (*TransactionPage, error) {
	f.Pagination = f.Pagination.normalize()

	var total int64
	if err := s.base(ctx, f).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	var rows []TransactionView
	err := s.base(ctx, f).
		Select(transactionViewColumns).
		Order("t.created_at DESC NULLS LAST").
		Order("t.id DESC").
		Limit(f.Size).
		Offset(f.offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if err := s.attachDetails(ctx, rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []TransactionView{}
	}
	return &TransactionPage{Items: rows, Total: total, Pagination: f.Pagination}, nil
}

// GetTransaction returns one transaction view, or gorm.ErrRecordNotFound.
func (s *TransactionQueryService) GetTransaction(ctx context.Context, guid string) (*TransactionView, error) {
	var rows []TransactionView
	err := s.base(ctx, TransactionFilter{}).
		Select(transactionViewColumns).
		Where("t.guid = ?", guid).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", guid, err)
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	if err := s.attachDetails(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (s *TransactionQueryService) attachDetails(ctx context.Context, rows []TransactionView) error {
	if len(rows) == 0 {
		return nil
	}
	guids := make([]string, len(rows))
	for i, r := range rows {
		guids[i] = r.GUID
	}

	var details []models.TransactionDetail
	if err := s.DB.WithContext(ctx).
		Where("transaction_guid IN ?", guids).
		Order("id ASC").
		Find(&details).Error; err != nil {
		return fmt.Errorf("load line items: %w", err)
	}

	byParent := make(map[string][]models.TransactionDetail, len(rows))
	for _, d := range details {
		byParent[d.TransactionGUID] = append(byParent[d.TransactionGUID], d)
	}
	for i := range rows {
		rows[i].Details = byParent[rows[i].GUID]
		if rows[i].Details == nil {
			rows[i].Details = []models.TransactionDetail{}
		}
		rows[i].IsSuccess = rows[i].IsFinished()
	}
	return nil
}
