package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ClipJob tracks the export of one sampled, transformed clip.
type ClipJob struct {
	ID           uuid.UUID
	UserID       string
	VideoKey     string
	ZipKey       string
	Status       JobStatus
	Label        *int
	TotalFrames  int
	FrameIndices []int
	Attempt      int
	MaxAttempts  int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewClipJob(userID, videoKey string, label *int, maxAttempts int) *ClipJob {
	now := time.Now().UTC()
	return &ClipJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		Label:       label,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *ClipJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *ClipJob) MarkCompleted(zipKey string, totalFrames int, indices []int) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ZipKey = zipKey
	j.TotalFrames = totalFrames
	j.FrameIndices = indices
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *ClipJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *ClipJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

// StatusMessage snapshots the job for the status queue.
func (j *ClipJob) StatusMessage() ClipStatusMessage {
	return ClipStatusMessage{
		JobID:        j.ID,
		UserID:       j.UserID,
		Status:       j.Status,
		VideoKey:     j.VideoKey,
		ZipKey:       j.ZipKey,
		Label:        j.Label,
		TotalFrames:  j.TotalFrames,
		FrameIndices: j.FrameIndices,
		ErrorMessage: j.ErrorMessage,
		Attempt:      j.Attempt,
		MaxAttempts:  j.MaxAttempts,
	}
}
