package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-video-datasets/internal/dataset"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ClipLoader runs the dataset loading pipeline for one video.
type ClipLoader interface {
	Load(ctx context.Context, path string, totalFrames int, label entity.Label) (dataset.Example, error)
}

// ExportClipUseCase materialises one sampled, transformed clip per request
// as a zip of PNG frames.
type ExportClipUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	loader    ClipLoader
	archiver  port.FrameArchiver
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
}

type ExportClipConfig struct {
	TempDir    string
	MaxRetries int
}

func NewExportClipUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	loader ClipLoader,
	archiver port.FrameArchiver,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ExportClipConfig,
) *ExportClipUseCase {
	return &ExportClipUseCase{
		repo:      repo,
		storage:   storage,
		loader:    loader,
		archiver:  archiver,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
	}
}

// Execute handles one raw export request. A nil return acknowledges the
// message; an error asks the consumer to requeue it.
func (uc *ExportClipUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ExportClipUseCase.Execute")
	defer span.End()

	start := time.Now()

	var msg entity.ClipExportMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		uc.deadLetter(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if msg.JobID == uuid.Nil || msg.VideoKey == "" || msg.UserID == "" {
		uc.logger.Error("export message missing required fields", zap.ByteString("body", rawMsg))
		uc.deadLetter(ctx, rawMsg, "invalid_message: job_id, user_id and video_key are required")
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)
	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	switch {
	case errors.Is(err, port.ErrJobNotFound):
		job = entity.NewClipJob(msg.UserID, msg.VideoKey, msg.Label, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	case err != nil:
		log.Error("failed to load job record", zap.Error(err))
		return fmt.Errorf("find job: %w", err)
	}
	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, skipping redelivery")
		return nil
	}
	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded", log)
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}
	uc.publishStatus(ctx, job, log)

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.exportPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.ExportJobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.ExportStageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	return nil
}

func (uc *ExportClipUseCase) exportPipeline(
	ctx context.Context,
	job *entity.ClipJob,
	msg entity.ClipExportMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input"+path.Ext(msg.VideoKey))
	err := uc.stage(ctx, "download", func(ctx context.Context) error {
		return uc.storage.DownloadVideo(ctx, msg.VideoKey, videoPath)
	})
	if err != nil {
		log.Error("failed to download video", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), false, log)
	}

	label := entity.NoLabel
	if msg.Label != nil {
		label = entity.SingleLabel(*msg.Label)
	}
	var ex dataset.Example
	err = uc.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		ex, err = uc.loader.Load(ctx, videoPath, 0, label)
		return err
	})
	if err != nil {
		log.Error("failed to load clip", zap.Error(err))
		// A video the sampler or transforms reject will never succeed.
		permanent := errors.Is(err, entity.ErrInvalidParam)
		return uc.handleFailure(ctx, job, msg, rawMsg, "load_clip: "+err.Error(), permanent, log)
	}
	if len(ex.Clip.Frames) == 0 {
		return uc.handleFailure(ctx, job, msg, rawMsg, "load_clip: pipeline produced no image frames", true, log)
	}

	zipPath := filepath.Join(workDir, "clip.zip")
	var size int64
	err = uc.stage(ctx, "archive", func(ctx context.Context) error {
		var err error
		size, err = uc.archiver.ArchiveFrames(ctx, ex.Clip.Frames, zipPath)
		return err
	})
	if err != nil {
		log.Error("clip archive failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, "archive_clip: "+err.Error(), false, log)
	}

	zipKey := fmt.Sprintf("%s/clip_%s.zip", msg.UserID, job.ID.String())
	err = uc.stage(ctx, "upload", func(ctx context.Context) error {
		f, err := os.Open(zipPath)
		if err != nil {
			return err
		}
		defer f.Close()
		return uc.storage.UploadClip(ctx, zipKey, f, size)
	})
	if err != nil {
		log.Error("clip upload failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, "upload_clip: "+err.Error(), false, log)
	}

	job.MarkCompleted(zipKey, ex.TotalFrames, ex.Indices)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}
	uc.publishStatus(ctx, job, log)

	log.Info("clip exported",
		zap.Int("total_frames", ex.TotalFrames),
		zap.Ints("frame_indices", ex.Indices),
		zap.Stringer("label", ex.Label),
		zap.String("zip_key", zipKey),
		zap.Int64("zip_bytes", size),
	)
	return nil
}

func (uc *ExportClipUseCase) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := otel.Tracer("usecase").Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	metrics.ExportStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return nil
}

func (uc *ExportClipUseCase) handleFailure(
	ctx context.Context,
	job *entity.ClipJob,
	msg entity.ClipExportMessage,
	rawMsg []byte,
	errMsg string,
	permanent bool,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to record job failure", zap.Error(err))
	}

	if permanent || !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ExportClipUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.ClipJob,
	msg entity.ClipExportMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to record job failure", zap.Error(err))
	}

	uc.deadLetter(ctx, rawMsg, errMsg)
	uc.publishStatus(ctx, job, log)
	metrics.ExportJobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		notice := port.FailureNotice{
			UserEmail: msg.UserEmail,
			JobID:     job.ID.String(),
			VideoKey:  job.VideoKey,
			Attempts:  job.Attempt,
			Reason:    errMsg,
		}
		if err := uc.notifier.NotifyFailure(ctx, notice); err != nil {
			log.Warn("failure notification not sent", zap.Error(err))
		}
	}
	return nil
}

func (uc *ExportClipUseCase) deadLetter(ctx context.Context, rawMsg []byte, reason string) {
	if err := uc.dlq.PublishToDLQ(ctx, rawMsg, reason); err != nil {
		uc.logger.Error("failed to publish to DLQ", zap.Error(err), zap.String("reason", reason))
	}
}

func (uc *ExportClipUseCase) publishStatus(ctx context.Context, job *entity.ClipJob, log *zap.Logger) {
	if err := uc.publisher.PublishStatus(ctx, job.StatusMessage()); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
