package paymentsync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Mapping roles resolved by the journal target
const (
	RoleCash       = "cash"
	RoleReceivable = "receivable"
	RolePayable    = "payable"
)

// Trigger is the payment event a rule reacts to
type Trigger string

const (
	TriggerOnCreate       Trigger = "on_create"
	TriggerOnUpdate       Trigger = "on_update"
	TriggerOnDelete       Trigger = "on_delete"
	TriggerOnStatusChange Trigger = "on_status_change"
)

// IsValid checks if the trigger is a valid Trigger
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerOnCreate, TriggerOnUpdate, TriggerOnDelete, TriggerOnStatusChange:
		return true
	}
	return false
}

// String returns the string representation of Trigger
func (t Trigger) String() string {
	return string(t)
}

// Target is a ledger a rule mirrors the payment into
type Target string

const (
	TargetCustomerLedger Target = "customer_ledger"
	TargetSupplierLedger Target = "supplier_ledger"
	TargetJournal        Target = "journal"
	TargetBalanceCache   Target = "balance_cache"
)

// CanonicalTargets is the execution order of targets within a rule. Ledger
// mirrors precede the journal entry, which precedes cache invalidation.
var CanonicalTargets = []Target{TargetCustomerLedger, TargetSupplierLedger, TargetJournal, TargetBalanceCache}

// IsValid checks if the target is a valid Target
func (t Target) IsValid() bool {
	switch t {
	case TargetCustomerLedger, TargetSupplierLedger, TargetJournal, TargetBalanceCache:
		return true
	}
	return false
}

// String returns the string representation of Target
func (t Target) String() string {
	return string(t)
}

// TargetFlags selects which targets a rule drives
type TargetFlags struct {
	CustomerLedger bool `json:"customer_ledger"`
	SupplierLedger bool `json:"supplier_ledger"`
	Journal        bool `json:"journal"`
	BalanceCache   bool `json:"balance_cache"`
}

// Has reports whether the target flag is set
func (f TargetFlags) Has(t Target) bool {
	switch t {
	case TargetCustomerLedger:
		return f.CustomerLedger
	case TargetSupplierLedger:
		return f.SupplierLedger
	case TargetJournal:
		return f.Journal
	case TargetBalanceCache:
		return f.BalanceCache
	}
	return false
}

// Enabled returns the set targets in canonical order
func (f TargetFlags) Enabled() []Target {
	targets := make([]Target, 0, len(CanonicalTargets))
	for _, t := range CanonicalTargets {
		if f.Has(t) {
			targets = append(targets, t)
		}
	}
	return targets
}

// SyncRule is a declarative mapping from a payment event to sync targets
type SyncRule struct {
	shared.BaseAggregateRoot
	Name        string            `json:"name"`
	Description string            `json:"description"`
	SourceModel payment.Kind      `json:"source_model"`
	Trigger     Trigger           `json:"trigger"`
	Targets     TargetFlags       `json:"targets"`
	Conditions  map[string]string `json:"conditions"`
	Mapping     map[string]string `json:"mapping"`
	Priority    int               `json:"priority"`
	IsActive    bool              `json:"is_active"`
}

// NewSyncRule creates an active rule
func NewSyncRule(name string, source payment.Kind, trigger Trigger, targets TargetFlags, priority int) (*SyncRule, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("INVALID_RULE_NAME", "Rule name cannot be empty")
	}
	if !source.IsValid() {
		return nil, shared.NewValidationError("INVALID_SOURCE_MODEL", fmt.Sprintf("Unknown source model %q", source))
	}
	if !trigger.IsValid() {
		return nil, shared.NewValidationError("INVALID_TRIGGER", fmt.Sprintf("Unknown trigger %q", trigger))
	}
	return &SyncRule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		SourceModel:       source,
		Trigger:           trigger,
		Targets:           targets,
		Conditions:        map[string]string{},
		Mapping:           map[string]string{},
		Priority:          priority,
		IsActive:          true,
	}, nil
}

// WithConditions sets the field conditions of the rule
func (r *SyncRule) WithConditions(conditions map[string]string) *SyncRule {
	r.Conditions = conditions
	return r
}

// WithMapping sets the role to account code mapping of the rule
func (r *SyncRule) WithMapping(mapping map[string]string) *SyncRule {
	r.Mapping = mapping
	return r
}

// SetActive enables or disables the rule
func (r *SyncRule) SetActive(active bool) {
	r.IsActive = active
	r.Touch()
	r.IncrementVersion()
}

// Matches reports whether every condition equals the attribute of the same
// name. A missing attribute fails the match. Amounts compare numerically.
func (r *SyncRule) Matches(attrs map[string]string) bool {
	for field, want := range r.Conditions {
		got, ok := attrs[field]
		if !ok {
			return false
		}
		if field == "amount" {
			w, errW := decimal.NewFromString(want)
			g, errG := decimal.NewFromString(got)
			if errW == nil && errG == nil {
				if !w.Equal(g) {
					return false
				}
				continue
			}
		}
		if got != want {
			return false
		}
	}
	return true
}

// AccountCode resolves a mapping role, falling back to def
func (r *SyncRule) AccountCode(role, def string) string {
	if r != nil {
		if code, ok := r.Mapping[role]; ok && code != "" {
			return code
		}
	}
	return def
}

// SortRules orders rules by ascending priority, breaking ties by name
func SortRules(rules []SyncRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})
}

// DefaultRule is the rule applied to forced syncs when nothing matches
func DefaultRule(kind payment.Kind, trigger Trigger) SyncRule {
	targets := TargetFlags{Journal: true, BalanceCache: true}
	switch kind {
	case payment.KindSalePayment:
		targets.CustomerLedger = true
	case payment.KindPurchasePayment:
		targets.SupplierLedger = true
	}
	return SyncRule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              fmt.Sprintf("default-%s-%s", kind, trigger),
		SourceModel:       kind,
		Trigger:           trigger,
		Targets:           targets,
		Conditions:        map[string]string{},
		Mapping:           map[string]string{},
		Priority:          1000,
		IsActive:          true,
	}
}
