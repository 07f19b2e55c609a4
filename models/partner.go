package models

import "time"

// Partner owns a referral code; many customers reference one partner.
type Partner struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	Code         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code" yaml:"code"`
	Name         string    `gorm:"not null" json:"name" yaml:"name"`
	IsGovernment bool      `gorm:"not null;default:false" json:"is_government" yaml:"is_government"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

// AutoMigrateModels lists every table the service owns.
var AutoMigrateModels = []interface{}{
	&Customer{},
	&Transaction{},
	&TransactionDetail{},
	&CreditUsage{},
	&Partner{},
}
