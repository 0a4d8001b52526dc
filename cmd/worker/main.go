package main

import (
	"context"
	"image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-video-datasets/internal/dataset"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/config"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/email"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-video-datasets/internal/infra/minio"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/postgres"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/tracing"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"github.com/fiapx/fiapx-video-datasets/internal/transform"
	"github.com/fiapx/fiapx-video-datasets/internal/usecase"
	"github.com/fiapx/fiapx-video-datasets/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting clip export worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing is optional; a missing collector only loses spans.
	tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.TraceSampleRatio)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		UseSSL:        cfg.MinIOUseSSL,
		VideoBucket:   cfg.MinIOVideoBucket,
		ClipBucket:    cfg.MinIOClipBucket,
		DatasetBucket: cfg.MinIODatasetBucket,
	}, log)
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	clipSampler, err := sampler.FromSpec(cfg.Sampler.Spec())
	fatalOnErr(err, "build sampler")
	pipeline, err := transform.FromSpec(cfg.Transform.Spec())
	fatalOnErr(err, "build transform pipeline")

	reader := ffmpeg.NewReader(ffmpeg.ReaderConfig{
		FFmpegBin:  cfg.FFmpegBin,
		FFprobeBin: cfg.FFprobeBin,
		TempDir:    cfg.TempDir,
	}, log)
	loader := dataset.NewLoader("export", reader, clipSampler, pipeline, log)

	uc := usecase.NewExportClipUseCase(
		postgres.NewJobRepository(pool),
		storage,
		loader,
		ffmpeg.NewPNGArchiver(png.CompressionLevel(cfg.PNGCompressionLevel)),
		rabbitmq.NewStatusPublisher(pub),
		rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ),
		email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
		log,
		usecase.ExportClipConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
		},
	)

	metricsSrv := metrics.NewServer(cfg.MetricsPort, log)
	metricsSrv.Start()

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL: cfg.RabbitMQURL,
		Topology: rabbitmq.Topology{
			Exchange:    cfg.RabbitMQExchange,
			ExportQueue: cfg.RabbitMQExportQueue,
			StatusQueue: cfg.RabbitMQStatusQueue,
			DLQ:         cfg.RabbitMQDLQ,
		},
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		metricsSrv.SetReady(false)
		cancel()
	}()

	log.Info("clip export worker started, consuming messages",
		zap.String("sampler", cfg.Sampler.Kind),
		zap.Int("num_frames", cfg.Sampler.NumFrames),
		zap.Int("transform_steps", pipeline.Len()),
	)
	metricsSrv.SetReady(true)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("clip export worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
