package port

import (
	"context"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// StatusPublisher announces clip export progress.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.ClipStatusMessage) error
}

// DLQPublisher parks raw messages that can never be processed.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, raw []byte, reason string) error
}
