package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const transferPayeePrefix = "Transfer : "

// CategoryMapper keeps the payee -> category mapping used to categorise new transactions. Mappings are advisory:
// concurrent writers converge on last writer wins.
type CategoryMapper struct {
	storage Storage
	logger  *zap.Logger
}

func NewCategoryMapper(s Storage, l *zap.Logger) *CategoryMapper {
	return &CategoryMapper{
		storage: s,
		logger:  l,
	}
}

// InferCategory returns nil when the payee has no active mapping or the lookup failed.
func (m *CategoryMapper) InferCategory(ctx context.Context, payee string) *string {
	if mapping := m.infer(ctx, payee); mapping != nil {
		return &mapping.CategoryID
	}
	return nil
}

func (m *CategoryMapper) infer(ctx context.Context, payee string) *PayeeCategoryMapping {
	mapping, err := m.storage.GetPayeeCategory(ctx, payee)
	if err != nil {
		m.logger.Error("mapper: lookup failed, leaving uncategorised", zap.Error(err), zap.String("payee", payee))
		return nil
	}

	if mapping == nil {
		m.logger.Debug("mapper: no category mapping for payee", zap.String("payee", payee))
		return nil
	}

	m.logger.Debug(
		"mapper: category mapping found",
		zap.String("payee", payee),
		zap.String("category_id", mapping.CategoryID),
	)

	return mapping
}

// Observe overwrites the payee's category and bumps its observation count, creating the mapping if needed.
func (m *CategoryMapper) Observe(ctx context.Context, payee, categoryID, categoryName string) error {
	if err := m.storage.UpsertPayeeCategory(ctx, payee, categoryID, categoryName, 1); err != nil {
		return fmt.Errorf("upsert payee category: %w", err)
	}

	return nil
}

type ResyncReport struct {
	Payees      int `json:"payees"`
	Mapped      int `json:"mapped"`
	Ambiguous   int `json:"ambiguous"`
	Deactivated int `json:"deactivated"`
}

// ResyncFromHistory rebuilds mappings from the budget's transaction history. A payee seen with exactly one
// category is mapped to it; a payee seen with several is left unresolved and any mapping it had is deactivated.
func (m *CategoryMapper) ResyncFromHistory(
	ctx context.Context,
	snapshot *BudgetSnapshot,
	ownAccounts []Account,
) (ResyncReport, error) {
	if snapshot == nil {
		return ResyncReport{}, errors.New("empty budget snapshot")
	}

	observed := collectObservations(snapshot, ownAccounts)

	payees := make([]string, 0, len(observed))
	for payee := range observed {
		payees = append(payees, payee)
	}
	sort.Strings(payees)

	report := ResyncReport{Payees: len(payees)}

	err := m.storage.RunInTransaction(ctx, func(ctx context.Context, tx Storage) error {
		for _, payee := range payees {
			obs := observed[payee]

			if len(obs) == 1 {
				for _, o := range obs {
					if err := tx.UpsertPayeeCategory(ctx, payee, o.categoryID, o.categoryName, o.count); err != nil {
						return fmt.Errorf("upsert payee category %q: %w", payee, err)
					}
				}
				report.Mapped++
				continue
			}

			report.Ambiguous++
			deactivated, err := tx.DeactivatePayeeCategory(ctx, payee)
			if err != nil {
				return fmt.Errorf("deactivate payee category %q: %w", payee, err)
			}
			if deactivated {
				report.Deactivated++
			}

			m.logger.Debug("mapper: ambiguous payee left unmapped", zap.String("payee", payee), zap.Int("categories", len(obs)))
		}

		return nil
	})
	if err != nil {
		return ResyncReport{}, err
	}

	m.logger.Info(
		"mapper: resync from history completed",
		zap.Int("payees", report.Payees),
		zap.Int("mapped", report.Mapped),
		zap.Int("ambiguous", report.Ambiguous),
		zap.Int("deactivated", report.Deactivated),
	)

	return report, nil
}

type observation struct {
	categoryID   string
	categoryName string
	count        int
}

// collectObservations groups categorised, non-transfer, non-split history by payee name and category id.
func collectObservations(snapshot *BudgetSnapshot, ownAccounts []Account) map[string]map[string]*observation {
	payees := make(map[string]Payee, len(snapshot.Payees))
	for _, p := range snapshot.Payees {
		payees[p.ID] = p
	}

	categories := make(map[string]Category, len(snapshot.Categories))
	for _, c := range snapshot.Categories {
		categories[c.ID] = c
	}

	splits := make(map[string]struct{})
	for _, sub := range snapshot.Subtransactions {
		splits[sub.TransactionID] = struct{}{}
	}

	own := make(map[string]struct{}, len(ownAccounts)+len(snapshot.Accounts))
	for _, a := range ownAccounts {
		own[a.Name] = struct{}{}
	}
	for _, a := range snapshot.Accounts {
		own[a.Name] = struct{}{}
	}

	observed := make(map[string]map[string]*observation)

	for _, tx := range snapshot.Transactions {
		if tx.Deleted || tx.CategoryID == "" || tx.TransferAccountID != "" {
			continue
		}
		if _, ok := splits[tx.ID]; ok {
			continue
		}

		payee, ok := payees[tx.PayeeID]
		if !ok || payee.Name == "" || isTransferPayee(payee, own) {
			continue
		}

		category, ok := categories[tx.CategoryID]
		if ok && category.Deleted {
			continue
		}

		byCategory, ok := observed[payee.Name]
		if !ok {
			byCategory = make(map[string]*observation)
			observed[payee.Name] = byCategory
		}

		o, ok := byCategory[tx.CategoryID]
		if !ok {
			o = &observation{categoryID: tx.CategoryID, categoryName: category.Name}
			byCategory[tx.CategoryID] = o
		}
		o.count++
	}

	return observed
}

func isTransferPayee(p Payee, ownAccounts map[string]struct{}) bool {
	if p.TransferAccountID != "" || strings.HasPrefix(p.Name, transferPayeePrefix) {
		return true
	}

	_, ok := ownAccounts[p.Name]
	return ok
}
