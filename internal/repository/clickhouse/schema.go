package clickhouse

import (
	"context"
	"fmt"
)

// The three tables are append-only ReplacingMergeTrees keyed by
// (project_id, id): repeated upserts append new rows and reads with FINAL
// collapse them to the last written version. All epoch columns are
// microseconds.
var schemaStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS traces (
		id String,
		timestamp Int64,
		name Nullable(String),
		user_id Nullable(String),
		metadata Map(String, String),
		release Nullable(String),
		version Nullable(String),
		project_id String,
		public Nullable(Bool),
		bookmarked Nullable(Bool),
		tags Array(String),
		input Nullable(String),
		output Nullable(String),
		session_id Nullable(String),
		created_at Int64,
		updated_at Int64
	) ENGINE = ReplacingMergeTree
	PRIMARY KEY (project_id, id)
	ORDER BY (project_id, id)
	SETTINGS index_granularity = 8192
	`,
	`
	CREATE TABLE IF NOT EXISTS observations (
		id String,
		trace_id Nullable(String),
		project_id String,
		type String,
		parent_observation_id Nullable(String),
		start_time Int64,
		end_time Nullable(Int64),
		completion_start_time Nullable(Int64),
		name Nullable(String),
		metadata Map(String, String),
		level Nullable(String),
		status_message Nullable(String),
		version Nullable(String),
		input Nullable(String),
		output Nullable(String),
		model Nullable(String),
		internal_model_id Nullable(String),
		model_parameters Nullable(String),
		input_usage Nullable(Int64),
		output_usage Nullable(Int64),
		total_usage Nullable(Int64),
		unit Nullable(String),
		input_cost Nullable(Float64),
		output_cost Nullable(Float64),
		total_cost Nullable(Float64),
		prompt_id Nullable(String),
		created_at Int64
	) ENGINE = ReplacingMergeTree
	PRIMARY KEY (project_id, id)
	ORDER BY (project_id, id)
	SETTINGS index_granularity = 8192
	`,
	`
	CREATE TABLE IF NOT EXISTS scores (
		id String,
		timestamp Int64,
		project_id String,
		name Nullable(String),
		value Nullable(Float64),
		source String,
		comment Nullable(String),
		trace_id String,
		observation_id Nullable(String),
		created_at Int64
	) ENGINE = ReplacingMergeTree
	PRIMARY KEY (project_id, id)
	ORDER BY (project_id, id)
	SETTINGS index_granularity = 8192
	`,
}

// InitSchema creates the telemetry tables if they do not exist
func (r *Repository) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := r.client.Conn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create telemetry table: %w", err)
		}
	}
	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}
