// models/credit_usage.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CreditUsageDebit  = "debit"  // credits spent, drives activity status
	CreditUsageCredit = "credit" // credits granted or purchased
)

// CreditUsage is one entry of a customer's credit ledger (the "usage" sync).
type CreditUsage struct {
	ID           uint    `gorm:"primaryKey" json:"-"`
	GUID         string  `gorm:"column:guid;type:varchar(64);uniqueIndex;not null" json:"guid"`
	CustomerGUID *string `gorm:"column:customer_guid;type:varchar(64);index:idx_credit_usage_customer_type" json:"customer_guid"`

	Type        string          `gorm:"type:varchar(16);not null;index:idx_credit_usage_customer_type" json:"type"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"amount"`
	ProductName string          `json:"product_name"`
	Description string          `gorm:"type:text" json:"description"`

	CreatedAt *time.Time `gorm:"index;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}
