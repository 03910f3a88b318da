package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
	"github.com/glasswing-ai/tracelens/internal/repository"
)

// DefaultUsageUnit is assumed when the SDK reported no unit.
const DefaultUsageUnit = "TOKENS"

// Tokenizer counts tokens in text for a given model.
type Tokenizer interface {
	Count(model, text string) int
}

// CostMatcher fills in token counts and costs on merged generation records.
// Records are grouped by (model, unit, project) so each distinct pricing
// definition is resolved once per batch; the resolution is a pure function
// of that key.
type CostMatcher struct {
	catalog   repository.Catalog
	tokenizer Tokenizer
	log       *zap.Logger
}

// NewCostMatcher creates a cost matcher
func NewCostMatcher(catalog repository.Catalog, tokenizer Tokenizer, log *zap.Logger) *CostMatcher {
	return &CostMatcher{catalog: catalog, tokenizer: tokenizer, log: log}
}

// Match resolves pricing for each generation group and fills in usage and
// cost fields where absent. Groups without a model name or without a
// matching definition pass through unchanged; records that already carry
// any cost value are never overwritten.
func (m *CostMatcher) Match(ctx context.Context, records []*domain.ObservationRecord) ([]*domain.ObservationRecord, error) {
	type pricingKey struct {
		model   string
		unit    string
		project string
	}

	grouped := make(map[pricingKey][]*domain.ObservationRecord)
	for _, record := range records {
		if record.Type != domain.ObservationGeneration || record.Model == nil {
			continue
		}
		key := pricingKey{
			model:   *record.Model,
			unit:    DefaultUsageUnit,
			project: record.ProjectID,
		}
		if record.Unit != nil {
			key.unit = *record.Unit
		}
		grouped[key] = append(grouped[key], record)
	}

	for key, group := range grouped {
		model, err := m.catalog.FindModel(ctx, key.project, key.model, key.unit)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve pricing for model %s: %w", key.model, err)
		}
		if model == nil {
			// absence of a pricing definition is a normal pass-through
			continue
		}

		m.log.Debug("Matched pricing definition",
			zap.String("model", key.model),
			zap.String("unit", key.unit),
			zap.Int("observations", len(group)))

		for _, record := range group {
			m.apply(model, record)
		}
	}

	return records, nil
}

func (m *CostMatcher) apply(model *domain.ModelDefinition, record *domain.ObservationRecord) {
	if record.InputUsage == nil && record.OutputUsage == nil && record.TotalUsage == nil {
		inputCount := int64(m.tokenizer.Count(model.ModelName, stringOrEmpty(record.Input)))
		outputCount := int64(m.tokenizer.Count(model.ModelName, stringOrEmpty(record.Output)))
		totalCount := inputCount + outputCount
		record.InputUsage = &inputCount
		record.OutputUsage = &outputCount
		record.TotalUsage = &totalCount
	}

	if record.InputCost != nil || record.OutputCost != nil || record.TotalCost != nil {
		// user-supplied costs win; no forcible overwrite
		return
	}

	record.InternalModelID = &model.ID
	record.InputCost = float64Ptr(priceOrZero(model.InputPrice) * usageOrZero(record.InputUsage))
	record.OutputCost = float64Ptr(priceOrZero(model.OutputPrice) * usageOrZero(record.OutputUsage))
	record.TotalCost = float64Ptr(priceOrZero(model.TotalPrice) * usageOrZero(record.TotalUsage))
}

func priceOrZero(price *float64) float64 {
	if price == nil {
		return 0
	}
	return *price
}

func usageOrZero(usage *int64) float64 {
	if usage == nil {
		return 0
	}
	return float64(*usage)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func float64Ptr(f float64) *float64 { return &f }
