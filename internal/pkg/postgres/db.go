package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB provides operations with postgresql
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates DB instance
func NewDB(pool *pgxpool.Pool) (*DB, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	res := &DB{pool: pool}
	return res, nil
}

// InsertAudioJob inserts uploaded audio job into DB
func (db *DB) InsertAudioJob(ctx context.Context, job *persistence.AudioJob) error {
	_, err := db.pool.Exec(ctx, `INSERT INTO audio_jobs(id, file_name, content_type, status, created, updated) 
	VALUES($1, $2, $3, $4, $5, $5)`, job.ID, job.FileName, job.ContentType, job.Status, job.Created)
	if err != nil {
		return fmt.Errorf("can't insert audio job: %w", err)
	}
	return nil
}

// LoadAudioJob loads audio job, returns nil if there is no such job
func (db *DB) LoadAudioJob(ctx context.Context, id string) (*persistence.AudioJob, error) {
	var res persistence.AudioJob
	err := db.pool.QueryRow(ctx, `SELECT id, file_name, content_type, status, transcript, error, created, updated 
	FROM audio_jobs WHERE id = $1`, id).Scan(&res.ID, &res.FileName, &res.ContentType, &res.Status,
		&res.Transcript, &res.Error, &res.Created, &res.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load audio job: %w", err)
	}
	return &res, nil
}

// UpdateAudioJob saves status, transcript and error of the job
func (db *DB) UpdateAudioJob(ctx context.Context, job *persistence.AudioJob) error {
	cmd, err := db.pool.Exec(ctx, `UPDATE audio_jobs SET 
	status = $2,
	transcript = $3,
	error = $4,
	updated = $5
	WHERE id = $1`, job.ID, job.Status, job.Transcript, job.Error, time.Now())
	if err != nil {
		return fmt.Errorf("can't update audio job: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("can't update audio job, no records found")
	}
	return nil
}

// InsertEvaluation inserts evaluation job into DB
func (db *DB) InsertEvaluation(ctx context.Context, e *persistence.Evaluation) error {
	_, err := db.pool.Exec(ctx, `INSERT INTO evaluations(id, interview_id, status, transcript, created, updated) 
	VALUES($1, $2, $3, $4, $5, $5)`, e.ID, e.InterviewID, e.Status, e.Transcript, e.Created)
	if err != nil {
		return fmt.Errorf("can't insert evaluation: %w", err)
	}
	return nil
}

const evaluationFields = `id, interview_id, status, transcript, payload, error, created, updated`

func scanEvaluation(row pgx.Row) (*persistence.Evaluation, error) {
	var res persistence.Evaluation
	err := row.Scan(&res.ID, &res.InterviewID, &res.Status, &res.Transcript, &res.Payload,
		&res.Error, &res.Created, &res.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load evaluation: %w", err)
	}
	return &res, nil
}

// LoadEvaluation loads evaluation by processing job id, returns nil if there is none
func (db *DB) LoadEvaluation(ctx context.Context, id string) (*persistence.Evaluation, error) {
	return scanEvaluation(db.pool.QueryRow(ctx, `SELECT `+evaluationFields+` FROM evaluations WHERE id = $1`, id))
}

// LoadEvaluationByInterview loads the latest evaluation of the interview, returns nil if there is none
func (db *DB) LoadEvaluationByInterview(ctx context.Context, interviewID string) (*persistence.Evaluation, error) {
	return scanEvaluation(db.pool.QueryRow(ctx, `SELECT `+evaluationFields+` FROM evaluations 
	WHERE interview_id = $1 ORDER BY created DESC LIMIT 1`, interviewID))
}

// UpdateEvaluation saves status, payload and error of the evaluation
func (db *DB) UpdateEvaluation(ctx context.Context, e *persistence.Evaluation) error {
	cmd, err := db.pool.Exec(ctx, `UPDATE evaluations SET 
	status = $2,
	payload = $3,
	error = $4,
	updated = $5
	WHERE id = $1`, e.ID, e.Status, e.Payload, e.Error, time.Now())
	if err != nil {
		return fmt.Errorf("can't update evaluation: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("can't update evaluation, no records found")
	}
	return nil
}

// Live returns no error if db is reachable and initialized
func (db *DB) Live(ctx context.Context) error {
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM pg_tables WHERE tablename = 'gue_jobs')`).Scan(&exists); err != nil {
		return fmt.Errorf("can't check table: %w", err)
	}
	if !exists {
		return fmt.Errorf("no migration done")
	}
	return nil
}
