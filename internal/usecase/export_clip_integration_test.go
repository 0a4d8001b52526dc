package usecase

import (
	"archive/zip"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-video-datasets/internal/dataset"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/email"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/ffmpeg"
	miniostorage "github.com/fiapx/fiapx-video-datasets/internal/infra/minio"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/postgres"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"github.com/fiapx/fiapx-video-datasets/internal/transform"
	"github.com/fiapx/fiapx-video-datasets/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func TestExportClipEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)
	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(pgConnStr, filepath.Join("..", "..", "migrations")))

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)
	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)
	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    minioEndpoint,
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
		VideoBucket: "uploads",
		ClipBucket:  "clips",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	// 2s of 10 fps test pattern: 20 frames.
	videoPath := filepath.Join(t.TempDir(), "test.mp4")
	gen := exec.CommandContext(ctx, "ffmpeg", "-v", "error", "-f", "lavfi",
		"-i", "testsrc=size=96x64:rate=10:duration=2", "-pix_fmt", "yuv420p", "-y", videoPath)
	out, err := gen.CombinedOutput()
	require.NoError(t, err, string(out))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)
	videoKey := "testuser/test.mp4"
	_, err = minioClient.FPutObject(ctx, "uploads", videoKey, videoPath, miniogo.PutObjectOptions{ContentType: "video/mp4"})
	require.NoError(t, err)

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()
	pub, err := rabbitmq.NewPublisher(rmqConn, "fiapx.datasets")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	log, _ := logger.New("debug")
	clipSampler, err := sampler.NewClip(sampler.ClipConfig{NumFrames: 4})
	require.NoError(t, err)
	pipeline := transform.NewCompose(transform.Frames(transform.CenterCrop{Width: 48, Height: 48}))
	loader := dataset.NewLoader("export", ffmpeg.NewReader(ffmpeg.ReaderConfig{TempDir: t.TempDir()}, log), clipSampler, pipeline, log)

	uc := NewExportClipUseCase(
		postgres.NewJobRepository(pool), storage, loader, ffmpeg.NewPNGArchiver(png.BestSpeed),
		rabbitmq.NewStatusPublisher(pub), rabbitmq.NewDLQPublisher(pub, "clip.export.dlq"),
		email.NewSMTPNotifier("localhost", 1025, "test@test.local", log),
		log,
		ExportClipConfig{TempDir: t.TempDir(), MaxRetries: 3},
	)

	topology := rabbitmq.Topology{
		Exchange:    "fiapx.datasets",
		ExportQueue: "clip.export",
		StatusQueue: "clip.status",
		DLQ:         "clip.export.dlq",
	}
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Topology:    topology,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelay:   100 * time.Millisecond,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	go consumer.Start(consumerCtx)

	label := 3
	jobID := uuid.New()
	require.NoError(t, pub.PublishExport(ctx, entity.ClipExportMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		Label:     &label,
		UserEmail: "test@test.local",
	}))

	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()
	statuses, err := statusCh.Consume("clip.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var final entity.ClipStatusMessage
	deadline := time.After(2 * time.Minute)
	for final.Status != entity.JobStatusCompleted {
		select {
		case d := <-statuses:
			require.NoError(t, json.Unmarshal(d.Body, &final))
			require.NotEqual(t, entity.JobStatusFailed, final.Status, final.ErrorMessage)
		case <-deadline:
			t.Fatal("timeout waiting for completed status")
		}
	}

	assert.Equal(t, jobID, final.JobID)
	assert.Equal(t, 20, final.TotalFrames)
	assert.Equal(t, []int{0, 5, 10, 15}, final.FrameIndices)

	obj, err := minioClient.GetObject(ctx, "clips", final.ZipKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	tmpZip := filepath.Join(t.TempDir(), "clip.zip")
	f, err := os.Create(tmpZip)
	require.NoError(t, err)
	_, err = f.ReadFrom(obj)
	require.NoError(t, err)
	f.Close()

	zr, err := zip.OpenReader(tmpZip)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 4)

	var dbStatus string
	var dbIndices []int
	err = pool.QueryRow(ctx,
		"SELECT status, frame_indices FROM clip_export_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbIndices)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, final.FrameIndices, dbIndices)
}

func TestExportClipMalformedMessageEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)
	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()
	pub, err := rabbitmq.NewPublisher(rmqConn, "fiapx.datasets")
	require.NoError(t, err)

	f := newFixture(t, 10, 3)
	f.uc.dlq = rabbitmq.NewDLQPublisher(pub, "clip.export.dlq")

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL: rmqURL,
		Topology: rabbitmq.Topology{
			Exchange:    "fiapx.datasets",
			ExportQueue: "clip.export",
			StatusQueue: "clip.status",
			DLQ:         "clip.export.dlq",
		},
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelay:   100 * time.Millisecond,
	}, f.uc.Execute, f.uc.logger)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	go consumer.Start(consumerCtx)

	ch, err := rmqConn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.PublishWithContext(ctx, "fiapx.datasets", rabbitmq.ExportRoutingKey, false, false,
		amqp.Publishing{ContentType: "application/json", Body: []byte(`{invalid json`)}))

	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get("clip.export.dlq", true)
		return err == nil && ok && string(msg.Body) == `{invalid json`
	}, 30*time.Second, 200*time.Millisecond)
}
