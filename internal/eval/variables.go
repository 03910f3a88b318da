package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/aymerick/raymond"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
)

const objectKindTrace = "trace"

// extractVariables resolves every template variable to a string value read
// from the stored trace or one of its observations. Variables without a
// mapping, or mapped to an unknown column, degrade to the empty string; a
// missing trace or observation row is an error.
func (e *Executor) extractVariables(ctx context.Context, projectID, traceID string, vars []string, mapping []domain.VariableMapping) (map[string]string, error) {
	values := make(map[string]string, len(vars))
	for _, name := range vars {
		m, ok := findMapping(mapping, name)
		if !ok {
			e.log.Warn("No mapping for template variable, substituting empty string",
				zap.String("variable", name))
			values[name] = ""
			continue
		}

		value, err := e.extractVariable(ctx, projectID, traceID, m)
		if err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, nil
}

func (e *Executor) extractVariable(ctx context.Context, projectID, traceID string, m domain.VariableMapping) (string, error) {
	if strings.EqualFold(m.ObjectKind, objectKindTrace) {
		column, ok := domain.TraceColumn(m.ColumnID)
		if !ok {
			e.log.Warn("Unknown trace column in variable mapping, substituting empty string",
				zap.String("variable", m.TemplateVariable),
				zap.String("column", m.ColumnID))
			return "", nil
		}
		value, err := e.store.SelectTraceColumn(ctx, projectID, traceID, column)
		if err != nil {
			return "", fmt.Errorf("failed to read trace column %q: %w", column.ID, err)
		}
		return value, nil
	}

	obsType, ok := observationKind(m.ObjectKind)
	if !ok {
		e.log.Warn("Unknown object kind in variable mapping, substituting empty string",
			zap.String("variable", m.TemplateVariable),
			zap.String("object_kind", m.ObjectKind))
		return "", nil
	}
	if m.ObjectName == nil || *m.ObjectName == "" {
		e.log.Warn("Observation mapping without an object name, substituting empty string",
			zap.String("variable", m.TemplateVariable))
		return "", nil
	}
	column, ok := domain.ObservationColumn(m.ColumnID)
	if !ok {
		e.log.Warn("Unknown observation column in variable mapping, substituting empty string",
			zap.String("variable", m.TemplateVariable),
			zap.String("column", m.ColumnID))
		return "", nil
	}
	value, err := e.store.SelectObservationColumn(ctx, projectID, traceID, *m.ObjectName, obsType, column)
	if err != nil {
		return "", fmt.Errorf("failed to read observation column %q: %w", column.ID, err)
	}
	return value, nil
}

func findMapping(mapping []domain.VariableMapping, variable string) (domain.VariableMapping, bool) {
	for _, m := range mapping {
		if m.TemplateVariable == variable {
			return m, true
		}
	}
	return domain.VariableMapping{}, false
}

func observationKind(kind string) (domain.ObservationType, bool) {
	switch strings.ToLower(kind) {
	case "generation":
		return domain.ObservationGeneration, true
	case "span":
		return domain.ObservationSpan, true
	case "event":
		return domain.ObservationEvent, true
	default:
		return "", false
	}
}

// RenderPrompt compiles a handlebars-style template and substitutes the
// extracted values verbatim, without HTML escaping.
func RenderPrompt(template string, values map[string]string) (string, error) {
	tpl, err := raymond.Parse(template)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse prompt template: %v", domain.ErrValidation, err)
	}
	ctx := make(map[string]raymond.SafeString, len(values))
	for name, value := range values {
		ctx[name] = raymond.SafeString(value)
	}
	rendered, err := tpl.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to render prompt template: %v", domain.ErrValidation, err)
	}
	return rendered, nil
}
