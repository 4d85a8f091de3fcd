package domain

import (
	"github.com/shopspring/decimal"
)

// Entity type names. They double as table names and remote path segments.
const (
	EntityUsers        = "users"
	EntityGroups       = "groups"
	EntityRequisitions = "requisitions"
	EntityAccounts     = "accounts"
	EntityTransactions = "transactions"
	EntityPayments     = "payments"
	EntitySplits       = "payment_splits"
	EntityConversions  = "currency_conversions"
)

// User is a participant of groups and payments.
type User struct {
	SyncRecord
	DisplayName     string `gorm:"type:varchar(100);not null" json:"display_name"`
	Email           string `gorm:"type:varchar(255);index" json:"email"`
	DefaultCurrency string `gorm:"type:varchar(3);not null;default:'USD'" json:"default_currency"`
}

// TableName specifies the table name for User.
func (User) TableName() string { return EntityUsers }

// Group is a set of users sharing expenses in a default currency.
type Group struct {
	SyncRecord
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Currency string `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	OwnerID  string `gorm:"type:varchar(64);index" json:"owner_id"`
}

// TableName specifies the table name for Group.
func (Group) TableName() string { return EntityGroups }

// Requisition is a bank-link authorization that grants access to accounts.
type Requisition struct {
	SyncRecord
	UserID        string `gorm:"type:varchar(64);index" json:"user_id"`
	InstitutionID string `gorm:"type:varchar(100);not null" json:"institution_id"`
	Reference     string `gorm:"type:varchar(100)" json:"reference"`
	LinkStatus    string `gorm:"type:varchar(32)" json:"status"`
	ExpiresAt     int64  `json:"expires_at"`
}

// TableName specifies the table name for Requisition.
func (Requisition) TableName() string { return EntityRequisitions }

// Account is a linked bank account.
type Account struct {
	SyncRecord
	RequisitionID string `gorm:"type:varchar(64);index" json:"requisition_id"`
	Name          string `gorm:"type:varchar(100)" json:"name"`
	MaskedIBAN    string `gorm:"type:varchar(64)" json:"masked_iban"`
	Currency      string `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Balance       int64  `gorm:"not null;default:0" json:"balance"`
}

// TableName specifies the table name for Account.
func (Account) TableName() string { return EntityAccounts }

// Transaction is a booked or pending bank transaction imported from the feed.
type Transaction struct {
	SyncRecord
	AccountID   string `gorm:"type:varchar(64);index" json:"account_id"`
	Amount      int64  `gorm:"not null" json:"amount"`
	Currency    string `gorm:"type:varchar(3);not null" json:"currency"`
	Description string `gorm:"type:text" json:"description"`
	BookedAt    int64  `gorm:"index" json:"booked_at"`
	Pending     bool   `gorm:"not null;default:false" json:"pending"`
}

// TableName specifies the table name for Transaction.
func (Transaction) TableName() string { return EntityTransactions }

// SplitMode selects how a payment is divided between participants.
type SplitMode string

const (
	SplitEqual      SplitMode = "EQUAL"
	SplitWeighted   SplitMode = "WEIGHTED"
	SplitPercentage SplitMode = "PERCENTAGE"
)

// IsValid reports whether m is a known split mode.
func (m SplitMode) IsValid() bool {
	switch m {
	case SplitEqual, SplitWeighted, SplitPercentage:
		return true
	}
	return false
}

// Payment is an expense paid by one user and shared within a group.
// Amount is signed and held in minor units of Currency.
type Payment struct {
	SyncRecord
	GroupID     string    `gorm:"type:varchar(64);index" json:"group_id"`
	PayerID     string    `gorm:"type:varchar(64);index" json:"payer_id"`
	Description string    `gorm:"type:text" json:"description"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(3);not null" json:"currency"`
	SplitMode   SplitMode `gorm:"type:varchar(16);not null;default:'EQUAL'" json:"split_mode"`
	PaidAt      int64     `json:"paid_at"`
	UpdatedBy   string    `gorm:"type:varchar(64)" json:"updated_by"`
}

// TableName specifies the table name for Payment.
func (Payment) TableName() string { return EntityPayments }

// Split is one participant's share of a payment.
// Invariant: the amounts of all splits of a payment sum to the payment amount.
type Split struct {
	SyncRecord
	PaymentID     string              `gorm:"type:varchar(64);index;not null" json:"payment_id"`
	ParticipantID string              `gorm:"type:varchar(64);not null" json:"participant_id"`
	Amount        int64               `gorm:"not null" json:"amount"`
	Currency      string              `gorm:"type:varchar(3);not null" json:"currency"`
	Percentage    decimal.NullDecimal `gorm:"type:varchar(32)" json:"percentage"`
	UpdatedBy     string              `gorm:"type:varchar(64)" json:"updated_by"`
}

// TableName specifies the table name for Split.
func (Split) TableName() string { return EntitySplits }

// CurrencyConversion is the append-only audit row of a payment conversion.
type CurrencyConversion struct {
	SyncRecord
	PaymentID        string          `gorm:"type:varchar(64);index;not null" json:"payment_id"`
	OriginalCurrency string          `gorm:"type:varchar(3);not null" json:"original_currency"`
	OriginalAmount   int64           `gorm:"not null" json:"original_amount"`
	FinalCurrency    string          `gorm:"type:varchar(3);not null" json:"final_currency"`
	FinalAmount      int64           `gorm:"not null" json:"final_amount"`
	ExchangeRate     decimal.Decimal `gorm:"type:varchar(40);not null" json:"exchange_rate"`
	Source           string          `gorm:"type:varchar(64)" json:"source"`
	Actor            string          `gorm:"type:varchar(64)" json:"actor"`
	ConvertedAt      int64           `gorm:"not null" json:"converted_at"`
}

// TableName specifies the table name for CurrencyConversion.
func (CurrencyConversion) TableName() string { return EntityConversions }

// Models lists every table the local store migrates.
func Models() []any {
	return []any{
		&SyncMetadata{},
		&User{},
		&Group{},
		&Requisition{},
		&Account{},
		&Transaction{},
		&Payment{},
		&Split{},
		&CurrencyConversion{},
	}
}

// SyncPriority orders entity types so that dependencies sync before
// their dependents. Lower runs first.
var SyncPriority = map[string]int{
	EntityUsers:        10,
	EntityGroups:       20,
	EntityRequisitions: 30,
	EntityAccounts:     40,
	EntityTransactions: 50,
	EntityPayments:     60,
	EntitySplits:       70,
	EntityConversions:  80,
}
