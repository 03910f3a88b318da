package clickhouse

import (
	"fmt"
	"strings"

	"github.com/glasswing-ai/tracelens/internal/domain"
)

// buildTraceFilter translates a structured predicate into an appended
// " AND ..." condition with bound arguments. Column ids resolve through
// the trace column whitelist; unknown columns or operators are rejected
// so user-edited filters can never inject SQL.
func buildTraceFilter(filter []domain.FilterCondition) (string, []any, error) {
	var sb strings.Builder
	var args []any

	for _, cond := range filter {
		column, ok := domain.TraceColumn(cond.Column)
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown filter column %q", domain.ErrValidation, cond.Column)
		}

		if column.Kind == domain.ColumnStringArray {
			switch cond.Operator {
			case "any of":
				values, err := toStringSlice(cond.Value)
				if err != nil {
					return "", nil, err
				}
				sb.WriteString(fmt.Sprintf(" AND hasAny(%s, ?)", column.Internal))
				args = append(args, values)
			case "none of":
				values, err := toStringSlice(cond.Value)
				if err != nil {
					return "", nil, err
				}
				sb.WriteString(fmt.Sprintf(" AND NOT hasAny(%s, ?)", column.Internal))
				args = append(args, values)
			default:
				return "", nil, fmt.Errorf("%w: operator %q not supported on %q", domain.ErrValidation, cond.Operator, cond.Column)
			}
			continue
		}

		switch cond.Operator {
		case "=", "!=", ">", "<", ">=", "<=":
			sb.WriteString(fmt.Sprintf(" AND %s %s ?", column.Internal, cond.Operator))
			args = append(args, cond.Value)
		case "contains":
			sb.WriteString(fmt.Sprintf(" AND position(%s, ?) > 0", column.Internal))
			args = append(args, cond.Value)
		case "does not contain":
			sb.WriteString(fmt.Sprintf(" AND position(%s, ?) = 0", column.Internal))
			args = append(args, cond.Value)
		case "starts with":
			sb.WriteString(fmt.Sprintf(" AND startsWith(%s, ?)", column.Internal))
			args = append(args, cond.Value)
		case "ends with":
			sb.WriteString(fmt.Sprintf(" AND endsWith(%s, ?)", column.Internal))
			args = append(args, cond.Value)
		case "any of":
			values, err := toStringSlice(cond.Value)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(fmt.Sprintf(" AND %s IN (?)", column.Internal))
			args = append(args, values)
		case "none of":
			values, err := toStringSlice(cond.Value)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(fmt.Sprintf(" AND %s NOT IN (?)", column.Internal))
			args = append(args, values)
		default:
			return "", nil, fmt.Errorf("%w: unknown filter operator %q", domain.ErrValidation, cond.Operator)
		}
	}

	return sb.String(), args, nil
}

func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: filter option values must be strings", domain.ErrValidation)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: filter operator requires a list of values", domain.ErrValidation)
	}
}
