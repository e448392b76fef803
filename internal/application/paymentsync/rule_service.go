// Package paymentsync mirrors payments into the customer and supplier
// ledgers, the journal and the balance cache, undoing partial work when a
// target fails.
package paymentsync

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/application/accounting"
	"github.com/erp/ledger/internal/application/validate"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/paymentsync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRuleInput holds the values of a new sync rule
type CreateRuleInput struct {
	Name        string                  `json:"name" validate:"required,max=100"`
	Description string                  `json:"description" validate:"max=500"`
	SourceModel string                  `json:"source_model" validate:"required,oneof=sale_payment purchase_payment customer_payment supplier_payment"`
	Trigger     string                  `json:"trigger" validate:"required,oneof=on_create on_update on_delete on_status_change"`
	Targets     paymentsync.TargetFlags `json:"targets"`
	Conditions  map[string]string       `json:"conditions"`
	Mapping     map[string]string       `json:"mapping"`
	Priority    int                     `json:"priority" validate:"gte=0"`
}

// RuleService stores sync rules and selects the ones applying to a payment
type RuleService struct {
	scope  accounting.TransactionScope
	logger *zap.Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(scope accounting.TransactionScope, logger *zap.Logger) *RuleService {
	return &RuleService{scope: scope, logger: logger}
}

// ApplicableRules returns the active rules for the payment kind and trigger
// whose conditions all match the payment, by ascending priority
func (s *RuleService) ApplicableRules(ctx context.Context, p *payment.Payment, trigger paymentsync.Trigger) ([]paymentsync.SyncRule, error) {
	var candidates []paymentsync.SyncRule
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		candidates, err = repos.SyncRules().FindActive(ctx, p.Kind, trigger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sync rules: %w", err)
	}

	attrs := p.Attributes()
	rules := make([]paymentsync.SyncRule, 0, len(candidates))
	for _, r := range candidates {
		if r.IsActive && r.Matches(attrs) {
			rules = append(rules, r)
		}
	}
	paymentsync.SortRules(rules)
	return rules, nil
}

// GetTargets returns the enabled targets of the rule in execution order
func (s *RuleService) GetTargets(rule *paymentsync.SyncRule) []paymentsync.Target {
	return rule.Targets.Enabled()
}

// CreateRule stores a new active rule
func (s *RuleService) CreateRule(ctx context.Context, input CreateRuleInput) (*paymentsync.SyncRule, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	rule, err := paymentsync.NewSyncRule(input.Name, payment.Kind(input.SourceModel), paymentsync.Trigger(input.Trigger), input.Targets, input.Priority)
	if err != nil {
		return nil, err
	}
	rule.Description = input.Description
	if input.Conditions != nil {
		rule.WithConditions(input.Conditions)
	}
	if input.Mapping != nil {
		rule.WithMapping(input.Mapping)
	}

	err = s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		return repos.SyncRules().Save(ctx, rule)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save sync rule: %w", err)
	}
	s.logger.Info("sync rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name),
		zap.String("source_model", string(rule.SourceModel)),
		zap.String("trigger", string(rule.Trigger)),
		zap.Int("priority", rule.Priority),
	)
	return rule, nil
}

// SetActive enables or disables a rule
func (s *RuleService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		rule, err := repos.SyncRules().FindByID(ctx, id)
		if err != nil {
			return err
		}
		rule.SetActive(active)
		return repos.SyncRules().Save(ctx, rule)
	})
}

// ListRules lists every stored rule
func (s *RuleService) ListRules(ctx context.Context) ([]paymentsync.SyncRule, error) {
	var rules []paymentsync.SyncRule
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		var err error
		rules, err = repos.SyncRules().FindAll(ctx)
		return err
	})
	return rules, err
}

// SeedDefaultRules stores the create, update and delete rules of sale and
// purchase payments. Rules already present by name are skipped.
func (s *RuleService) SeedDefaultRules(ctx context.Context) (int, error) {
	kinds := []payment.Kind{payment.KindSalePayment, payment.KindPurchasePayment}
	triggers := []paymentsync.Trigger{paymentsync.TriggerOnCreate, paymentsync.TriggerOnUpdate, paymentsync.TriggerOnDelete}

	created := 0
	err := s.scope.Execute(ctx, func(ctx context.Context, repos accounting.Repositories) error {
		for _, kind := range kinds {
			for _, trigger := range triggers {
				def := paymentsync.DefaultRule(kind, trigger)
				name := fmt.Sprintf("%s-%s", kind, trigger)
				existing, err := repos.SyncRules().FindByName(ctx, name)
				if err != nil {
					return err
				}
				if existing != nil {
					continue
				}
				rule, err := paymentsync.NewSyncRule(name, kind, trigger, def.Targets, 100)
				if err != nil {
					return err
				}
				rule.Description = fmt.Sprintf("Mirror %s %s into its ledger and the journal", kind, trigger)
				if err := repos.SyncRules().Save(ctx, rule); err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed sync rules: %w", err)
	}
	s.logger.Info("default sync rules seeded", zap.Int("created", created))
	return created, nil
}
