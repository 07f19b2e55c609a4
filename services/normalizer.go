// services/normalizer.go
package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"partnership-sync/models"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"gorm.io/datatypes"
)

// EmployeeCountBuckets maps the marketplace's employee-count ranges to the
// value stored in customers.employee_count. Policy: the low end of the range.
// Keys are compared lowercased with spaces removed. Anything not listed and
// not a plain integer is stored as NULL (unknown).
var EmployeeCountBuckets = map[string]int{
	"1-10":      1,
	"2-10":      2,
	"11-50":     11,
	"51-100":    51,
	"51-200":    51,
	"101-500":   101,
	"201-500":   201,
	"501-1000":  501,
	"1001-5000": 1001,
	">1000":     1001,
	"1000+":     1001,
	">5000":     5001,
	"5000+":     5001,
}

// NormalizeEmployeeCount converts a bucket string or plain number.
func NormalizeEmployeeCount(raw string) *int {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	if key == "" {
		return nil
	}
	if n, ok := EmployeeCountBuckets[key]; ok {
		return &n
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 {
		return &n
	}
	return nil
}

// NormalizeCode canonicalizes referral / partner codes for matching.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeCurrency returns the ISO 4217 code when recognised, otherwise the
// trimmed upper-cased input.
func NormalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return strings.ToUpper(code)
}

// NormalizeCustomer maps one marketplace customer payload to the canonical row.
func NormalizeCustomer(raw json.RawMessage) (models.Customer, error) {
	o, err := parseObject(raw)
	if err != nil {
		return models.Customer{}, fmt.Errorf("customer payload: %w", err)
	}

	return normalizeCustomerObject(o, "")
}

// normalizeCustomerObject maps a decoded customer object. fallbackGUID is used
// when the object carries no guid of its own, as with customers embedded in a
// transaction next to a top-level customer_guid.
func normalizeCustomerObject(o rawObject, fallbackGUID string) (models.Customer, error) {
	guid := firstNonEmpty(o.str("guid", "customer_guid", "uuid", "id"), fallbackGUID)
	if guid == "" {
		return models.Customer{}, &MissingIdentifierError{Entity: "customer", Field: "guid"}
	}

	company := o.object("company", "business")
	address := o.object("address", "location")

	name := o.str("name", "full_name", "fullname")
	if name == "" {
		name = strings.TrimSpace(o.str("first_name") + " " + o.str("last_name"))
	}

	industry := firstNonEmpty(
		o.str("industry", "industry_name"),
		o.object("industry").str("name"),
		company.str("industry", "industry_name"),
	)

	employees := firstNonEmpty(
		o.str("employee_count", "employees", "total_employee", "number_of_employees"),
		company.str("employee_count", "employees"),
	)

	products, err := normalizeProducts(o)
	if err != nil {
		return models.Customer{}, err
	}

	c := models.Customer{
		GUID:            guid,
		Name:            name,
		Username:        o.str("username", "user_name"),
		Email:           strings.ToLower(o.str("email", "email_address")),
		PhoneNumber:     o.str("phone_number", "phone", "msisdn"),
		IsEmailVerified: o.boolean("is_email_verified", "email_verified") || o.has("email_verified_at"),
		IsPhoneVerified: o.boolean("is_phone_verified", "phone_verified") || o.has("phone_verified_at"),
		City:            firstNonEmpty(o.str("city"), address.str("city")),
		Province:        firstNonEmpty(o.str("province"), address.str("province", "state")),
		CompanyName:     firstNonEmpty(o.str("company_name", "business_name"), company.str("name")),
		Industry:        industry,
		EmployeeCount:   NormalizeEmployeeCount(employees),
		Needs:           strings.Join(o.strings("needs", "need", "need_categories"), models.NeedsSeparator),
		ReferralCode:    NormalizeCode(o.str("referral_code", "referal_code", "ref_code")),
		Products:        products,
		CreatedAt:       o.timestamp("created_at", "createdAt", "register_date"),
		SourceUpdatedAt: o.timestamp("updated_at", "updatedAt"),
	}
	if industry != "" {
		c.IndustrySlug = slug.Make(industry)
	}
	return c, nil
}

func normalizeProducts(o rawObject) (datatypes.JSON, error) {
	items, ok := o.list("products", "product", "subscriptions", "subscription")
	if !ok {
		return nil, nil
	}
	products := make([]models.CustomerProduct, 0, len(items))
	for _, item := range items {
		p, err := parseObject(item)
		if err != nil {
			continue
		}
		nested := p.object("product")
		cp := models.CustomerProduct{
			GUID:      firstNonEmpty(p.str("product_guid", "guid", "id"), nested.str("guid", "id")),
			Name:      firstNonEmpty(p.str("product_name", "name"), nested.str("name")),
			Status:    p.str("status"),
			StartedAt: p.timestamp("started_at", "start_date", "subscribed_at"),
			EndedAt:   p.timestamp("ended_at", "end_date", "expired_at"),
		}
		if cp.GUID == "" && cp.Name == "" {
			continue
		}
		products = append(products, cp)
	}
	b, err := json.Marshal(products)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	return datatypes.JSON(b), nil
}

// TransactionRecord is the canonical transaction plus the customer data the
// payload embedded, if any.
type TransactionRecord struct {
	Transaction models.Transaction
	Customer    *models.Customer
	// DetailErrors are line items dropped during normalization.
	DetailErrors []error
}

// NormalizeTransaction maps one marketplace transaction payload.
func NormalizeTransaction(raw json.RawMessage) (TransactionRecord, error) {
	o, err := parseObject(raw)
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("transaction payload: %w", err)
	}

	guid := o.str("guid", "transaction_guid", "uuid", "id")
	if guid == "" {
		return TransactionRecord{}, &MissingIdentifierError{Entity: "transaction", Field: "guid"}
	}

	var rec TransactionRecord

	customerObj := o.object("customer", "user")
	customerGUID := firstNonEmpty(o.str("customer_guid", "user_guid"), customerObj.str("guid", "customer_guid", "uuid", "id"))
	if customerObj != nil && customerGUID != "" {
		if c, err := normalizeCustomerObject(customerObj, customerGUID); err == nil {
			c.GUID = customerGUID
			rec.Customer = &c
		}
	}

	channel := o.object("payment_channel", "payment_method")

	tx := models.Transaction{
		GUID:               guid,
		InvoiceNumber:      o.str("invoice_number", "invoice_no", "invoice", "code"),
		Status:             o.str("status", "transaction_status"),
		Currency:           NormalizeCurrency(o.str("currency", "currency_code")),
		PaymentChannelCode: firstNonEmpty(channel.str("code", "guid"), o.str("payment_channel_code")),
		PaymentChannelName: firstNonEmpty(channel.str("name"), o.str("payment_channel_name", "payment_channel", "payment_method")),
		PaidAt:             o.timestamp("paid_at", "payment_date"),
		CreatedAt:          o.timestamp("created_at", "createdAt", "transaction_date"),
		SourceUpdatedAt:    o.timestamp("updated_at", "updatedAt"),
	}
	if customerGUID != "" {
		tx.CustomerGUID = &customerGUID
	}

	tx.SubTotal, _ = o.decimal("sub_total", "subtotal")
	tx.Fee, _ = o.decimal("fee", "fees", "admin_fee", "service_fee")
	tx.Discount, _ = o.decimal("discount", "discounts", "discount_amount")
	grand, ok := o.decimal("grand_total", "total", "total_amount")
	if !ok {
		grand = tx.SubTotal.Add(tx.Fee).Sub(tx.Discount)
	}
	tx.GrandTotal = grand

	items, _ := o.list("details", "detail", "transaction_details", "items")
	for i, item := range items {
		d, err := normalizeDetail(item, guid, tx.CreatedAt)
		if err != nil {
			rec.DetailErrors = append(rec.DetailErrors, fmt.Errorf("transaction %s detail #%d: %w", guid, i+1, err))
			continue
		}
		tx.Details = append(tx.Details, d)
	}

	rec.Transaction = tx
	return rec, nil
}

// normalizeDetail maps one line item. When the item has no parent reference
// of its own, the enclosing transaction's GUID is used: the item sits inside
// that transaction's payload, so the link is known even if the field is not.
func normalizeDetail(raw json.RawMessage, parentGUID string, parentCreated *time.Time) (models.TransactionDetail, error) {
	d, err := parseObject(raw)
	if err != nil {
		return models.TransactionDetail{}, err
	}
	guid := d.str("guid", "detail_guid", "transaction_detail_guid", "id")
	if guid == "" {
		return models.TransactionDetail{}, &MissingIdentifierError{Entity: "transaction_detail", Field: "guid"}
	}

	product := d.object("product")
	merchant := firstObject(d.object("merchant"), product.object("merchant"))

	qty := 1
	if n := d.integer("quantity", "qty"); n != nil {
		qty = *n
	}
	price, _ := d.decimal("price", "unit_price", "amount")
	total, ok := d.decimal("total", "sub_total", "total_price")
	if !ok {
		total = price.Mul(decimal.NewFromInt(int64(qty)))
	}

	created := d.timestamp("created_at")
	if created == nil {
		created = parentCreated
	}

	return models.TransactionDetail{
		GUID:            guid,
		TransactionGUID: firstNonEmpty(d.str("transaction_guid", "transactionGuid", "parent_guid"), parentGUID),
		ProductGUID:     firstNonEmpty(d.str("product_guid"), product.str("guid", "id")),
		ProductName:     firstNonEmpty(d.str("product_name"), product.str("name")),
		MerchantGUID:    firstNonEmpty(d.str("merchant_guid"), merchant.str("guid", "id")),
		MerchantName:    firstNonEmpty(d.str("merchant_name"), merchant.str("name")),
		Price:           price,
		Quantity:        qty,
		Total:           total,
		CreatedAt:       created,
	}, nil
}

func firstObject(objs ...rawObject) rawObject {
	for _, o := range objs {
		if o != nil {
			return o
		}
	}
	return nil
}

var usageTypeAliases = map[string]string{
	"debit":    models.CreditUsageDebit,
	"db":       models.CreditUsageDebit,
	"d":        models.CreditUsageDebit,
	"out":      models.CreditUsageDebit,
	"usage":    models.CreditUsageDebit,
	"used":     models.CreditUsageDebit,
	"spend":    models.CreditUsageDebit,
	"credit":   models.CreditUsageCredit,
	"cr":       models.CreditUsageCredit,
	"c":        models.CreditUsageCredit,
	"in":       models.CreditUsageCredit,
	"topup":    models.CreditUsageCredit,
	"top_up":   models.CreditUsageCredit,
	"purchase": models.CreditUsageCredit,
}

// NormalizeCreditUsage maps one credit ledger entry.
func NormalizeCreditUsage(raw json.RawMessage) (models.CreditUsage, error) {
	o, err := parseObject(raw)
	if err != nil {
		return models.CreditUsage{}, fmt.Errorf("credit usage payload: %w", err)
	}

	guid := o.str("guid", "credit_guid", "history_guid", "uuid", "id")
	if guid == "" {
		return models.CreditUsage{}, &MissingIdentifierError{Entity: "credit_usage", Field: "guid"}
	}

	amount, _ := o.decimal("amount", "credit", "credits", "value")
	rawType := strings.ToLower(o.str("type", "transaction_type", "credit_type", "mutation"))
	usageType, known := usageTypeAliases[rawType]
	switch {
	case !known && rawType == "" && amount.IsNegative():
		usageType = models.CreditUsageDebit
	case !known:
		return models.CreditUsage{}, fmt.Errorf("credit usage %s has unknown type %q", guid, rawType)
	}

	u := models.CreditUsage{
		GUID:        guid,
		Type:        usageType,
		Amount:      amount.Abs(),
		ProductName: firstNonEmpty(o.str("product_name"), o.object("product").str("name")),
		Description: o.str("description", "note", "remarks"),
		CreatedAt:   o.timestamp("created_at", "createdAt", "date", "transaction_date"),
	}
	customerGUID := firstNonEmpty(o.str("customer_guid", "user_guid"), o.object("customer", "user").str("guid", "id"))
	if customerGUID != "" {
		u.CustomerGUID = &customerGUID
	}
	return u, nil
}
