package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default account codes used by automation
const (
	CodeMainCash            = "11011"
	CodePrimaryBank         = "11021"
	CodeAccountsReceivable  = "11030"
	CodeAccountsPayable     = "21010"
	CodeLongTermLoans       = "22010"
	CodeSalaries            = "52020"
	CodeLoanInterestExpense = "5300"
)

var accountCodePattern = regexp.MustCompile(`^[0-9]{4,8}$`)

// AccountCategory is the top-level classification of an account
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "asset"
	CategoryLiability AccountCategory = "liability"
	CategoryEquity    AccountCategory = "equity"
	CategoryRevenue   AccountCategory = "revenue"
	CategoryExpense   AccountCategory = "expense"
)

// IsValid checks if the category is a valid AccountCategory
func (c AccountCategory) IsValid() bool {
	switch c {
	case CategoryAsset, CategoryLiability, CategoryEquity, CategoryRevenue, CategoryExpense:
		return true
	}
	return false
}

// String returns the string representation of AccountCategory
func (c AccountCategory) String() string {
	return string(c)
}

// DefaultNature returns the side on which accounts of this category increase
func (c AccountCategory) DefaultNature() AccountNature {
	if c == CategoryAsset || c == CategoryExpense {
		return NatureDebit
	}
	return NatureCredit
}

// AccountNature is the side on which an account's balance is positive
type AccountNature string

const (
	NatureDebit  AccountNature = "debit"
	NatureCredit AccountNature = "credit"
)

// IsValid checks if the nature is a valid AccountNature
func (n AccountNature) IsValid() bool {
	return n == NatureDebit || n == NatureCredit
}

// String returns the string representation of AccountNature
func (n AccountNature) String() string {
	return string(n)
}

// AccountType describes how an account is classified and signed
type AccountType struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Category AccountCategory `json:"category"`
	Nature   AccountNature   `json:"nature"`
}

// NewAccountType creates an account type, deriving nature from category when empty
func NewAccountType(code, name string, category AccountCategory, nature AccountNature) (AccountType, error) {
	if !category.IsValid() {
		return AccountType{}, shared.NewValidationError("INVALID_ACCOUNT_TYPE", fmt.Sprintf("Unknown account category %q", category))
	}
	if nature == "" {
		nature = category.DefaultNature()
	}
	if !nature.IsValid() {
		return AccountType{}, shared.NewValidationError("INVALID_ACCOUNT_TYPE", fmt.Sprintf("Unknown account nature %q", nature))
	}
	if code == "" {
		code = strings.ToUpper(string(category))
	}
	if name == "" {
		name = string(category)
	}
	return AccountType{Code: code, Name: name, Category: category, Nature: nature}, nil
}

// AccountFlags carries the boolean markers of an account
type AccountFlags struct {
	Bank         bool `json:"bank"`
	Cash         bool `json:"cash"`
	Reconcilable bool `json:"reconcilable"`
	System       bool `json:"system"`
}

// Account is an entry of the chart of accounts
type Account struct {
	shared.BaseAggregateRoot
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Type        AccountType  `json:"type"`
	ParentID    *uuid.UUID   `json:"parent_id"`
	Level       int          `json:"level"`
	IsLeaf      bool         `json:"is_leaf"`
	IsActive    bool         `json:"is_active"`
	Flags       AccountFlags `json:"flags"`
	Description string       `json:"description"`
}

// ValidateAccountCode checks the 4 to 8 digit code format
func ValidateAccountCode(code string) error {
	if !accountCodePattern.MatchString(code) {
		return shared.NewValidationError("INVALID_ACCOUNT_CODE", fmt.Sprintf("Account code %q must be 4 to 8 digits", code))
	}
	return nil
}

// NewRootAccount creates a top-level account
func NewRootAccount(code, name string, accountType AccountType, flags AccountFlags) (*Account, error) {
	if err := ValidateAccountCode(code); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("INVALID_ACCOUNT_NAME", "Account name cannot be empty")
	}
	if !accountType.Category.IsValid() || !accountType.Nature.IsValid() {
		return nil, shared.NewValidationError("INVALID_ACCOUNT_TYPE", "Root accounts require a valid account type")
	}
	return &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Type:              accountType,
		Level:             1,
		IsLeaf:            true,
		IsActive:          true,
		Flags:             flags,
	}, nil
}

// NewChildAccount creates an account below parent. The child inherits the
// parent's type unless override is given, and an override must stay within
// the parent's category.
func NewChildAccount(parent *Account, code, name string, override *AccountType, flags AccountFlags) (*Account, error) {
	if parent == nil {
		return nil, shared.NewValidationError("INVALID_PARENT", "Parent account is required")
	}
	accountType := parent.Type
	if override != nil {
		if override.Category != parent.Type.Category {
			return nil, shared.NewValidationError("INVALID_ACCOUNT_TYPE",
				fmt.Sprintf("Child account category %s differs from parent category %s", override.Category, parent.Type.Category))
		}
		accountType = *override
	}
	acc, err := NewRootAccount(code, name, accountType, flags)
	if err != nil {
		return nil, err
	}
	parentID := parent.ID
	acc.ParentID = &parentID
	acc.Level = parent.Level + 1
	return acc, nil
}

// IsRoot reports whether the account has no parent
func (a *Account) IsRoot() bool {
	return a.ParentID == nil
}

// IsSystem reports whether the account is protected from deletion
func (a *Account) IsSystem() bool {
	return a.Flags.System
}

// CanReceiveLines reports whether journal lines may reference this account
func (a *Account) CanReceiveLines() error {
	if !a.IsLeaf {
		return shared.NewValidationError(CodeNonLeafAccount, fmt.Sprintf("Account %s is not a leaf account", a.Code))
	}
	if !a.IsActive {
		return shared.NewValidationError(CodeInactiveAccount, fmt.Sprintf("Account %s is inactive", a.Code))
	}
	return nil
}

// BecomeParent clears the leaf flag once a child is attached
func (a *Account) BecomeParent() {
	if !a.IsLeaf {
		return
	}
	a.IsLeaf = false
	a.Touch()
	a.IncrementVersion()
}

// BecomeLeaf restores the leaf flag after the last child is removed
func (a *Account) BecomeLeaf() {
	if a.IsLeaf {
		return
	}
	a.IsLeaf = true
	a.Touch()
	a.IncrementVersion()
}

// Update changes the editable attributes of the account
func (a *Account) Update(name, description string, flags AccountFlags) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewValidationError("INVALID_ACCOUNT_NAME", "Account name cannot be empty")
	}
	a.Name = name
	a.Description = description
	// the system marker is set by seeding only
	flags.System = a.Flags.System
	a.Flags = flags
	a.Touch()
	a.IncrementVersion()
	return nil
}

// SetActive marks the account active or inactive
func (a *Account) SetActive(active bool) {
	if a.IsActive == active {
		return
	}
	a.IsActive = active
	a.Touch()
	a.IncrementVersion()
}

// SignedBalance normalizes a raw debit-minus-credit amount to the account nature
func (a *Account) SignedBalance(debitMinusCredit decimal.Decimal) decimal.Decimal {
	if a.Type.Nature == NatureCredit {
		return debitMinusCredit.Neg()
	}
	return debitMinusCredit
}
