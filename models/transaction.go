// models/transaction.go
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatusFinished is the success state reported by the marketplace.
// Statuses are free-form and compared case-insensitively.
const TransactionStatusFinished = "finished"

// Transaction mirrors a marketplace order. CustomerGUID may be nil: orphan
// transactions are stored, not rejected.
type Transaction struct {
	ID           uint    `gorm:"primaryKey" json:"-"`
	GUID         string  `gorm:"column:guid;type:varchar(64);uniqueIndex;not null" json:"guid"`
	CustomerGUID *string `gorm:"column:customer_guid;type:varchar(64);index" json:"customer_guid"`

	InvoiceNumber string `json:"invoice_number"`
	Status        string `gorm:"index" json:"status"`
	Currency      string `gorm:"type:varchar(8)" json:"currency"`

	SubTotal   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"sub_total"`
	Fee        decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"fee"`
	Discount   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"discount"`
	GrandTotal decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"grand_total"`

	// 💳 Payment channel, empty when the source omits the sub-object
	PaymentChannelCode string `json:"payment_channel_code"`
	PaymentChannelName string `json:"payment_channel_name"`

	PaidAt          *time.Time `json:"paid_at"`
	CreatedAt       *time.Time `gorm:"index;autoCreateTime:false" json:"created_at"`
	SourceUpdatedAt *time.Time `json:"source_updated_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`

	Details []TransactionDetail `gorm:"foreignKey:TransactionGUID;references:GUID" json:"details"`
}

// IsFinished reports whether the transaction reached the success state.
func (t Transaction) IsFinished() bool {
	return strings.EqualFold(strings.TrimSpace(t.Status), TransactionStatusFinished)
}

// TransactionDetail is a line item. TransactionGUID always references its
// parent, even when the source payload left the field out.
type TransactionDetail struct {
	ID              uint   `gorm:"primaryKey" json:"-"`
	GUID            string `gorm:"column:guid;type:varchar(64);uniqueIndex;not null" json:"guid"`
	TransactionGUID string `gorm:"column:transaction_guid;type:varchar(64);index;not null" json:"transaction_guid"`

	ProductGUID  string `gorm:"index" json:"product_guid"`
	ProductName  string `json:"product_name"`
	MerchantGUID string `gorm:"index" json:"merchant_guid"`
	MerchantName string `json:"merchant_name"`

	Price    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"price"`
	Quantity int             `gorm:"not null;default:0" json:"quantity"`
	Total    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"total"`

	CreatedAt *time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}
