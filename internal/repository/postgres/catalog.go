// Package postgres implements the relational catalog: pricing/token-model
// definitions, prompts and eval templates are consulted read-only, while
// job executions are created, transitioned and deleted by the eval engine.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/glasswing-ai/tracelens/internal/domain"
)

// Catalog implements repository.Catalog on a pgx pool
type Catalog struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to Postgres and verifies the connection
func New(ctx context.Context, dsn string, log *zap.Logger) (*Catalog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	log.Info("Postgres connection established")
	return &Catalog{pool: pool, log: log}, nil
}

// NewWithPool wraps an existing pool
func NewWithPool(pool *pgxpool.Pool, log *zap.Logger) *Catalog {
	return &Catalog{pool: pool, log: log}
}

// FindModel resolves a pricing definition by (project, model, unit).
// Project-scoped definitions take precedence over global ones.
func (c *Catalog) FindModel(ctx context.Context, projectID, model, unit string) (*domain.ModelDefinition, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT id, project_id, model_name, unit, tokenizer_id, input_price, output_price, total_price
		 FROM models
		 WHERE (project_id = $1 OR project_id IS NULL)
		   AND model_name = $2
		   AND unit = $3
		 ORDER BY project_id NULLS LAST
		 LIMIT 1`,
		projectID, model, unit,
	)

	def := &domain.ModelDefinition{}
	err := row.Scan(&def.ID, &def.ProjectID, &def.ModelName, &def.Unit,
		&def.TokenizerID, &def.InputPrice, &def.OutputPrice, &def.TotalPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find model %s/%s: %w", model, unit, err)
	}
	return def, nil
}

// FindPrompt resolves a prompt by (project, name, version)
func (c *Catalog) FindPrompt(ctx context.Context, projectID, name string, version int) (*domain.Prompt, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT id, project_id, name, version
		 FROM prompts
		 WHERE project_id = $1 AND name = $2 AND version = $3`,
		projectID, name, version,
	)

	prompt := &domain.Prompt{}
	err := row.Scan(&prompt.ID, &prompt.ProjectID, &prompt.Name, &prompt.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prompt %s v%d: %w", name, version, err)
	}
	return prompt, nil
}

// JobConfigurations lists all configurations of one job type in a project
func (c *Catalog) JobConfigurations(ctx context.Context, projectID string, jobType domain.JobType) ([]*domain.JobConfiguration, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, project_id, job_type, eval_template_id, score_name, filter, variable_mapping, delay_ms, sampling
		 FROM job_configurations
		 WHERE project_id = $1 AND job_type = $2`,
		projectID, string(jobType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query job configurations: %w", err)
	}
	defer rows.Close()

	var configs []*domain.JobConfiguration
	for rows.Next() {
		config, err := scanJobConfiguration(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, rows.Err()
}

// JobConfiguration reads a single configuration
func (c *Catalog) JobConfiguration(ctx context.Context, projectID, id string) (*domain.JobConfiguration, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, project_id, job_type, eval_template_id, score_name, filter, variable_mapping, delay_ms, sampling
		 FROM job_configurations
		 WHERE project_id = $1 AND id = $2`,
		projectID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query job configuration %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: job configuration %s", domain.ErrNotFound, id)
	}
	return scanJobConfiguration(rows)
}

func scanJobConfiguration(row pgx.Row) (*domain.JobConfiguration, error) {
	config := &domain.JobConfiguration{}
	var jobType string
	var filterJSON, mappingJSON []byte
	var delayMS int64

	if err := row.Scan(&config.ID, &config.ProjectID, &jobType, &config.EvalTemplateID,
		&config.ScoreName, &filterJSON, &mappingJSON, &delayMS, &config.Sampling); err != nil {
		return nil, fmt.Errorf("failed to scan job configuration: %w", err)
	}

	config.JobType = domain.JobType(jobType)
	config.Delay = time.Duration(delayMS) * time.Millisecond

	if len(filterJSON) > 0 {
		if err := json.Unmarshal(filterJSON, &config.Filter); err != nil {
			return nil, fmt.Errorf("%w: job configuration %s has malformed filter: %v", domain.ErrValidation, config.ID, err)
		}
	}
	if len(mappingJSON) > 0 {
		if err := json.Unmarshal(mappingJSON, &config.VariableMapping); err != nil {
			return nil, fmt.Errorf("%w: job configuration %s has malformed variable mapping: %v", domain.ErrValidation, config.ID, err)
		}
	}
	return config, nil
}

// EvalTemplate reads a prompt template with its declared variables and
// output schema
func (c *Catalog) EvalTemplate(ctx context.Context, projectID, id string) (*domain.EvalTemplate, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT id, project_id, name, version, prompt, vars, output_schema, provider, model, model_params
		 FROM eval_templates
		 WHERE project_id = $1 AND id = $2`,
		projectID, id,
	)

	template := &domain.EvalTemplate{}
	var schemaJSON []byte
	err := row.Scan(&template.ID, &template.ProjectID, &template.Name, &template.Version,
		&template.Prompt, &template.Vars, &schemaJSON, &template.Provider, &template.Model, &template.ModelParams)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: eval template %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read eval template %s: %w", id, err)
	}

	if err := json.Unmarshal(schemaJSON, &template.OutputSchema); err != nil {
		return nil, fmt.Errorf("%w: eval template %s has malformed output schema: %v", domain.ErrValidation, id, err)
	}
	return template, nil
}

// FindJobExecution returns the execution for (configuration, trace), if any
func (c *Catalog) FindJobExecution(ctx context.Context, projectID, configID, traceID string) (*domain.JobExecution, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT id, project_id, job_configuration_id, job_input_trace_id, status, job_output_score_id, start_time, end_time
		 FROM job_executions
		 WHERE project_id = $1 AND job_configuration_id = $2 AND job_input_trace_id = $3`,
		projectID, configID, traceID,
	)

	execution, err := scanJobExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return execution, err
}

// JobExecution reads a single execution
func (c *Catalog) JobExecution(ctx context.Context, projectID, id string) (*domain.JobExecution, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT id, project_id, job_configuration_id, job_input_trace_id, status, job_output_score_id, start_time, end_time
		 FROM job_executions
		 WHERE project_id = $1 AND id = $2`,
		projectID, id,
	)

	execution, err := scanJobExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: job execution %s", domain.ErrNotFound, id)
	}
	return execution, err
}

func scanJobExecution(row pgx.Row) (*domain.JobExecution, error) {
	execution := &domain.JobExecution{}
	var status string
	if err := row.Scan(&execution.ID, &execution.ProjectID, &execution.JobConfigurationID,
		&execution.JobInputTraceID, &status, &execution.JobOutputScoreID,
		&execution.StartTime, &execution.EndTime); err != nil {
		return nil, err
	}
	execution.Status = domain.JobExecutionStatus(status)
	return execution, nil
}

// InsertJobExecution creates a new PENDING execution
func (c *Catalog) InsertJobExecution(ctx context.Context, execution *domain.JobExecution) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO job_executions (id, project_id, job_configuration_id, job_input_trace_id, status, start_time)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		execution.ID, execution.ProjectID, execution.JobConfigurationID,
		execution.JobInputTraceID, string(execution.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job execution %s: %w", execution.ID, err)
	}
	return nil
}

// UpdateJobExecutionStatus transitions an execution
func (c *Catalog) UpdateJobExecutionStatus(ctx context.Context, projectID, id string, status domain.JobExecutionStatus) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE job_executions SET status = $3 WHERE project_id = $1 AND id = $2`,
		projectID, id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update job execution %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job execution %s", domain.ErrNotFound, id)
	}
	return nil
}

// CompleteJobExecution marks an execution COMPLETED with its output score
func (c *Catalog) CompleteJobExecution(ctx context.Context, projectID, id, scoreID string) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE job_executions
		 SET status = $3, job_output_score_id = $4, end_time = now()
		 WHERE project_id = $1 AND id = $2`,
		projectID, id, string(domain.JobExecutionCompleted), scoreID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job execution %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job execution %s", domain.ErrNotFound, id)
	}
	return nil
}

// DeleteJobExecution removes a cancelled execution
func (c *Catalog) DeleteJobExecution(ctx context.Context, projectID, id string) error {
	_, err := c.pool.Exec(ctx,
		`DELETE FROM job_executions WHERE project_id = $1 AND id = $2`,
		projectID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete job execution %s: %w", id, err)
	}
	return nil
}

// Close releases the pool
func (c *Catalog) Close() {
	c.pool.Close()
}
