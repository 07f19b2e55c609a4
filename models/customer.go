// models/customer.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Customer is the local mirror of a marketplace customer.
// Rows are created on first sync observation and overwritten by every later
// sync that sees the same GUID. Nothing in the service deletes them.
type Customer struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	GUID string `gorm:"column:guid;type:varchar(64);uniqueIndex;not null" json:"guid"`

	// 👤 Profile
	Name            string `json:"name"`
	Username        string `json:"username"`
	Email           string `gorm:"index" json:"email"`
	PhoneNumber     string `json:"phone_number"`
	IsEmailVerified bool   `gorm:"not null;default:false" json:"is_email_verified"`
	IsPhoneVerified bool   `gorm:"not null;default:false" json:"is_phone_verified"`
	City            string `json:"city"`
	Province        string `json:"province"`

	// 🏢 Corporate metadata
	CompanyName   string `json:"company_name"`
	Industry      string `json:"industry"`
	IndustrySlug  string `gorm:"index" json:"industry_slug"`
	EmployeeCount *int   `json:"employee_count"` // nil = unknown, never 0 for "no data"
	Needs         string `gorm:"type:text" json:"needs"`

	// 🔗 Partner attribution
	ReferralCode string `gorm:"index" json:"referral_code"`

	// 📦 Subscriptions, stored as the normalized list
	Products datatypes.JSON `gorm:"type:jsonb" json:"products"`

	CreatedAt       *time.Time `gorm:"index;autoCreateTime:false" json:"created_at"` // source creation time, kept from first insert
	SourceUpdatedAt *time.Time `json:"source_updated_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"` // refreshed on every upsert
}

// CustomerProduct is one entry of Customer.Products.
type CustomerProduct struct {
	GUID      string     `json:"guid"`
	Name      string     `json:"name"`
	Status    string     `json:"status,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NeedsSeparator joins the multi-value needs field for storage.
// Readers split on it; the normalizer never does.
const NeedsSeparator = ", "
