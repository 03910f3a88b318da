package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
)

// Repository implements repository.TelemetryStore for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

const traceColumns = `id, timestamp, name, user_id, metadata, release, version, project_id, public, bookmarked, tags, input, output, session_id, created_at, updated_at`

const observationColumns = `id, trace_id, project_id, type, parent_observation_id, start_time, end_time, completion_start_time, name, metadata, level, status_message, version, input, output, model, internal_model_id, model_parameters, input_usage, output_usage, total_usage, unit, input_cost, output_cost, total_cost, prompt_id, created_at`

const scoreColumns = `id, timestamp, project_id, name, value, source, comment, trace_id, observation_id, created_at`

// InsertTraces appends a batch of trace records
func (r *Repository) InsertTraces(ctx context.Context, records []*domain.TraceRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO traces")
	if err != nil {
		return fmt.Errorf("failed to prepare traces batch: %w", err)
	}

	for _, rec := range records {
		if err := batch.Append(
			rec.ID,
			rec.Timestamp,
			rec.Name,
			rec.UserID,
			nonNilMap(rec.Metadata),
			rec.Release,
			rec.Version,
			rec.ProjectID,
			rec.Public,
			rec.Bookmarked,
			nonNilSlice(rec.Tags),
			rec.Input,
			rec.Output,
			rec.SessionID,
			rec.CreatedAt,
			rec.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to append trace %s to batch: %w", rec.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send traces batch: %w", err)
	}
	return nil
}

// InsertObservations appends a batch of observation records
func (r *Repository) InsertObservations(ctx context.Context, records []*domain.ObservationRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO observations")
	if err != nil {
		return fmt.Errorf("failed to prepare observations batch: %w", err)
	}

	for _, rec := range records {
		if err := batch.Append(
			rec.ID,
			rec.TraceID,
			rec.ProjectID,
			string(rec.Type),
			rec.ParentObservationID,
			rec.StartTime,
			rec.EndTime,
			rec.CompletionStartTime,
			rec.Name,
			nonNilMap(rec.Metadata),
			rec.Level,
			rec.StatusMessage,
			rec.Version,
			rec.Input,
			rec.Output,
			rec.Model,
			rec.InternalModelID,
			rec.ModelParameters,
			rec.InputUsage,
			rec.OutputUsage,
			rec.TotalUsage,
			rec.Unit,
			rec.InputCost,
			rec.OutputCost,
			rec.TotalCost,
			rec.PromptID,
			rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append observation %s to batch: %w", rec.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send observations batch: %w", err)
	}
	return nil
}

// InsertScores appends a batch of score records
func (r *Repository) InsertScores(ctx context.Context, records []*domain.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO scores")
	if err != nil {
		return fmt.Errorf("failed to prepare scores batch: %w", err)
	}

	for _, rec := range records {
		if err := batch.Append(
			rec.ID,
			rec.Timestamp,
			rec.ProjectID,
			rec.Name,
			rec.Value,
			string(rec.Source),
			rec.Comment,
			rec.TraceID,
			rec.ObservationID,
			rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append score %s to batch: %w", rec.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send scores batch: %w", err)
	}
	return nil
}

// SelectLatestTraces reads the latest stored version of each trace id. The
// column list matches the insert shape, so rows come back ready to merge.
func (r *Repository) SelectLatestTraces(ctx context.Context, projectID string, ids []string) ([]*domain.TraceRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM traces FINAL WHERE project_id = ? AND id IN (?)`, traceColumns)
	rows, err := r.client.Conn().Query(ctx, query, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var records []*domain.TraceRecord
	for rows.Next() {
		rec := &domain.TraceRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.Name,
			&rec.UserID,
			&rec.Metadata,
			&rec.Release,
			&rec.Version,
			&rec.ProjectID,
			&rec.Public,
			&rec.Bookmarked,
			&rec.Tags,
			&rec.Input,
			&rec.Output,
			&rec.SessionID,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trace row: %w", err)
		}
		if len(rec.Metadata) == 0 {
			rec.Metadata = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SelectLatestObservations reads the latest stored version of each observation id
func (r *Repository) SelectLatestObservations(ctx context.Context, projectID string, ids []string) ([]*domain.ObservationRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM observations FINAL WHERE project_id = ? AND id IN (?)`, observationColumns)
	rows, err := r.client.Conn().Query(ctx, query, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var records []*domain.ObservationRecord
	for rows.Next() {
		rec := &domain.ObservationRecord{}
		var obsType string
		if err := rows.Scan(
			&rec.ID,
			&rec.TraceID,
			&rec.ProjectID,
			&obsType,
			&rec.ParentObservationID,
			&rec.StartTime,
			&rec.EndTime,
			&rec.CompletionStartTime,
			&rec.Name,
			&rec.Metadata,
			&rec.Level,
			&rec.StatusMessage,
			&rec.Version,
			&rec.Input,
			&rec.Output,
			&rec.Model,
			&rec.InternalModelID,
			&rec.ModelParameters,
			&rec.InputUsage,
			&rec.OutputUsage,
			&rec.TotalUsage,
			&rec.Unit,
			&rec.InputCost,
			&rec.OutputCost,
			&rec.TotalCost,
			&rec.PromptID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		rec.Type = domain.ObservationType(obsType)
		if len(rec.Metadata) == 0 {
			rec.Metadata = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SelectLatestScores reads the latest stored version of each score id
func (r *Repository) SelectLatestScores(ctx context.Context, projectID string, ids []string) ([]*domain.ScoreRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM scores FINAL WHERE project_id = ? AND id IN (?)`, scoreColumns)
	rows, err := r.client.Conn().Query(ctx, query, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var records []*domain.ScoreRecord
	for rows.Next() {
		rec := &domain.ScoreRecord{}
		var source string
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.ProjectID,
			&rec.Name,
			&rec.Value,
			&source,
			&rec.Comment,
			&rec.TraceID,
			&rec.ObservationID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		rec.Source = domain.ScoreSource(source)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TraceMatchesFilter checks whether a single trace satisfies the filter
func (r *Repository) TraceMatchesFilter(ctx context.Context, projectID, traceID string, filter []domain.FilterCondition) (bool, error) {
	condition, args, err := buildTraceFilter(filter)
	if err != nil {
		return false, err
	}

	query := `SELECT id FROM traces FINAL WHERE project_id = ? AND id = ?` + condition
	args = append([]any{projectID, traceID}, args...)

	rows, err := r.client.Conn().Query(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to query trace filter match: %w", err)
	}
	defer rows.Close()

	matched := rows.Next()
	return matched, rows.Err()
}

// SelectTraceColumn reads one whitelisted column of one trace, stringified
func (r *Repository) SelectTraceColumn(ctx context.Context, projectID, traceID string, column domain.ColumnDef) (string, error) {
	query := fmt.Sprintf(`SELECT %s FROM traces FINAL WHERE project_id = ? AND id = ? LIMIT 1`, column.Internal)
	return r.selectColumnValue(ctx, column, query, projectID, traceID)
}

// SelectObservationColumn reads one whitelisted column of the named
// observation of a trace, stringified
func (r *Repository) SelectObservationColumn(ctx context.Context, projectID, traceID, name string, obsType domain.ObservationType, column domain.ColumnDef) (string, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM observations FINAL WHERE project_id = ? AND trace_id = ? AND name = ? AND type = ? ORDER BY start_time DESC LIMIT 1`,
		column.Internal,
	)
	return r.selectColumnValue(ctx, column, query, projectID, traceID, name, string(obsType))
}

func (r *Repository) selectColumnValue(ctx context.Context, column domain.ColumnDef, query string, args ...any) (string, error) {
	rows, err := r.client.Conn().Query(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("failed to query column %s: %w", column.Internal, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: no row for column %s", domain.ErrNotFound, column.Internal)
	}

	switch column.Kind {
	case domain.ColumnStringMap:
		var value map[string]string
		if err := rows.Scan(&value); err != nil {
			return "", fmt.Errorf("failed to scan map column %s: %w", column.Internal, err)
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	case domain.ColumnStringArray:
		var value []string
		if err := rows.Scan(&value); err != nil {
			return "", fmt.Errorf("failed to scan array column %s: %w", column.Internal, err)
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	default:
		var value *string
		if err := rows.Scan(&value); err != nil {
			return "", fmt.Errorf("failed to scan column %s: %w", column.Internal, err)
		}
		if value == nil {
			return "", nil
		}
		return *value, nil
	}
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
