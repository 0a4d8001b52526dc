package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrJobNotFound is returned by FindByID and Update for unknown ids.
var ErrJobNotFound = port.ErrJobNotFound

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, user_id, video_key, zip_key, status, label, total_frames,
			frame_indices, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.ClipJob) error {
	query := `
		INSERT INTO clip_export_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.ZipKey, string(job.Status),
		job.Label, job.TotalFrames, indicesOrEmpty(job.FrameIndices),
		job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert clip job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.ClipJob) error {
	query := `
		UPDATE clip_export_jobs SET
			status=$2, zip_key=$3, total_frames=$4, frame_indices=$5,
			attempt=$6, error_message=$7, updated_at=$8, completed_at=$9
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.ZipKey, job.TotalFrames,
		indicesOrEmpty(job.FrameIndices), job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update clip job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update clip job %s: %w", job.ID, ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ClipJob, error) {
	query := `SELECT ` + jobColumns + ` FROM clip_export_jobs WHERE id=$1`

	job := &entity.ClipJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.ZipKey, &status,
		&job.Label, &job.TotalFrames, &job.FrameIndices,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find clip job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find clip job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	if len(job.FrameIndices) == 0 {
		job.FrameIndices = nil
	}
	return job, nil
}

func indicesOrEmpty(indices []int) []int {
	if indices == nil {
		return []int{}
	}
	return indices
}
