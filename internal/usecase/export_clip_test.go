package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/dataset"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"github.com/fiapx/fiapx-video-datasets/internal/transform"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]entity.ClipJob
	findErr error
}

func (r *memRepo) Create(_ context.Context, job *entity.ClipJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) Update(ctx context.Context, job *entity.ClipJob) error {
	return r.Create(ctx, job)
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.ClipJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, port.ErrJobNotFound)
	}
	return &job, nil
}

type memStorage struct {
	downloadErr error
	uploads     map[string][]byte
}

func (s *memStorage) DownloadVideo(_ context.Context, key, dest string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(dest, []byte("video:"+key), 0o644)
}

func (s *memStorage) UploadClip(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	s.uploads[key] = data
	return nil
}

// fileReader serves solid frames for any existing file.
type fileReader struct {
	frames int
}

func (f fileReader) CountFrames(_ context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	return f.frames, nil
}

func (f fileReader) LoadFrames(_ context.Context, _ string, indices []int) ([]image.Image, error) {
	out := make([]image.Image, len(indices))
	for i := range indices {
		out[i] = imaging.New(8, 6, color.NRGBA{B: 200, A: 255})
	}
	return out, nil
}

type countingArchiver struct {
	frames int
}

func (a *countingArchiver) ArchiveFrames(_ context.Context, frames []image.Image, out string) (int64, error) {
	a.frames = len(frames)
	data := []byte(fmt.Sprintf("%d frames", len(frames)))
	return int64(len(data)), os.WriteFile(out, data, 0o644)
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []entity.ClipStatusMessage
	dlq      []string
}

func (p *recordingPublisher) PublishStatus(_ context.Context, msg entity.ClipStatusMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, msg)
	return nil
}

func (p *recordingPublisher) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dlq = append(p.dlq, reason)
	return nil
}

func (p *recordingPublisher) last() entity.ClipStatusMessage {
	return p.statuses[len(p.statuses)-1]
}

type recordingNotifier struct {
	notices []port.FailureNotice
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

type fixture struct {
	uc       *ExportClipUseCase
	repo     *memRepo
	storage  *memStorage
	archiver *countingArchiver
	pub      *recordingPublisher
	notifier *recordingNotifier
}

func newFixture(t *testing.T, frames, maxRetries int) *fixture {
	t.Helper()
	s, err := sampler.NewClip(sampler.ClipConfig{NumFrames: 4})
	require.NoError(t, err)
	pipeline := transform.NewCompose(transform.Frames(transform.CenterCrop{Width: 4, Height: 4}))
	loader := dataset.NewLoader("export", fileReader{frames: frames}, s, pipeline, zap.NewNop())

	f := &fixture{
		repo:     &memRepo{jobs: map[uuid.UUID]entity.ClipJob{}},
		storage:  &memStorage{uploads: map[string][]byte{}},
		archiver: &countingArchiver{},
		pub:      &recordingPublisher{},
		notifier: &recordingNotifier{},
	}
	f.uc = NewExportClipUseCase(f.repo, f.storage, loader, f.archiver, f.pub, f.pub, f.notifier,
		zap.NewNop(), ExportClipConfig{TempDir: t.TempDir(), MaxRetries: maxRetries})
	return f
}

func exportMessage(t *testing.T, label *int) (uuid.UUID, []byte) {
	t.Helper()
	id := uuid.New()
	raw, err := json.Marshal(entity.ClipExportMessage{
		JobID:     id,
		UserID:    "user-1",
		VideoKey:  "user-1/video.mp4",
		Label:     label,
		UserEmail: "user@example.com",
	})
	require.NoError(t, err)
	return id, raw
}

func TestExportClipCompletes(t *testing.T) {
	f := newFixture(t, 40, 3)
	label := 2
	id, raw := exportMessage(t, &label)

	require.NoError(t, f.uc.Execute(context.Background(), raw))

	job, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 40, job.TotalFrames)
	assert.Equal(t, []int{0, 10, 20, 30}, job.FrameIndices)
	assert.Equal(t, 1, job.Attempt)

	zipKey := "user-1/clip_" + id.String() + ".zip"
	assert.Equal(t, zipKey, job.ZipKey)
	assert.Equal(t, "4 frames", string(f.storage.uploads[zipKey]))
	assert.Equal(t, 4, f.archiver.frames)

	require.Len(t, f.pub.statuses, 2)
	assert.Equal(t, entity.JobStatusProcessing, f.pub.statuses[0].Status)
	final := f.pub.last()
	assert.Equal(t, entity.JobStatusCompleted, final.Status)
	require.NotNil(t, final.Label)
	assert.Equal(t, 2, *final.Label)
	assert.Empty(t, f.pub.dlq)
}

func TestExportClipRedeliveryOfCompletedJob(t *testing.T) {
	f := newFixture(t, 40, 3)
	_, raw := exportMessage(t, nil)
	require.NoError(t, f.uc.Execute(context.Background(), raw))
	published := len(f.pub.statuses)

	require.NoError(t, f.uc.Execute(context.Background(), raw))
	assert.Len(t, f.pub.statuses, published)
}

func TestExportClipRepositoryErrorIsRetried(t *testing.T) {
	f := newFixture(t, 40, 3)
	f.repo.findErr = errors.New("connection refused")
	_, raw := exportMessage(t, nil)

	err := f.uc.Execute(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find job: connection refused")
	assert.Empty(t, f.repo.jobs)
	assert.Empty(t, f.pub.statuses)
	assert.Empty(t, f.pub.dlq)
	assert.Empty(t, f.storage.uploads)
}

func TestExportClipMalformedMessage(t *testing.T) {
	f := newFixture(t, 40, 3)

	require.NoError(t, f.uc.Execute(context.Background(), []byte(`{invalid json`)))
	require.NoError(t, f.uc.Execute(context.Background(), []byte(`{"user_id":"u"}`)))

	require.Len(t, f.pub.dlq, 2)
	assert.Contains(t, f.pub.dlq[0], "unmarshal_error")
	assert.Contains(t, f.pub.dlq[1], "invalid_message")
	assert.Empty(t, f.repo.jobs)
}

func TestExportClipRetriesThenDeadLetters(t *testing.T) {
	f := newFixture(t, 40, 2)
	f.storage.downloadErr = errors.New("connection reset")
	id, raw := exportMessage(t, nil)

	err := f.uc.Execute(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 1/2")
	assert.Equal(t, entity.JobStatusFailed, f.pub.last().Status)
	assert.Empty(t, f.pub.dlq)

	require.NoError(t, f.uc.Execute(context.Background(), raw))
	require.Len(t, f.pub.dlq, 1)
	assert.Contains(t, f.pub.dlq[0], "download_video: connection reset")

	job, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempt)
	assert.Equal(t, entity.JobStatusFailed, job.Status)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "user@example.com", f.notifier.notices[0].UserEmail)
	assert.Equal(t, 2, f.notifier.notices[0].Attempts)
}

func TestExportClipInvalidVideoFailsPermanently(t *testing.T) {
	f := newFixture(t, 0, 5)
	id, raw := exportMessage(t, nil)

	require.NoError(t, f.uc.Execute(context.Background(), raw))

	job, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)
	require.Len(t, f.pub.dlq, 1)
	assert.Contains(t, f.pub.dlq[0], "load_clip")
	assert.Len(t, f.notifier.notices, 1)
}
