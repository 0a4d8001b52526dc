package entity

import "github.com/google/uuid"

// ClipExportMessage is the inbound message from the clip export queue.
type ClipExportMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	Label     *int      `json:"label,omitempty"`
	UserEmail string    `json:"user_email"`
}

// ClipStatusMessage is the outbound message published to the status queue.
type ClipStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	VideoKey     string    `json:"video_key"`
	ZipKey       string    `json:"zip_key,omitempty"`
	Label        *int      `json:"label,omitempty"`
	TotalFrames  int       `json:"total_frames,omitempty"`
	FrameIndices []int     `json:"frame_indices,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}
