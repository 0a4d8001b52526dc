package port

import (
	"context"
	"errors"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/google/uuid"
)

// ErrJobNotFound is wrapped by repositories when a job id is unknown.
var ErrJobNotFound = errors.New("clip job not found")

type JobRepository interface {
	Create(ctx context.Context, job *entity.ClipJob) error
	Update(ctx context.Context, job *entity.ClipJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ClipJob, error)
}
