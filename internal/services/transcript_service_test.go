package services

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/danastri/meetscribe/internal/models"
	"github.com/danastri/meetscribe/internal/utils"
)

type memTranscriptRepo struct {
	nextID uint
	rows   map[uint]*models.Transcript
}

func newMemTranscriptRepo() *memTranscriptRepo {
	return &memTranscriptRepo{nextID: 1, rows: map[uint]*models.Transcript{}}
}

func (r *memTranscriptRepo) Insert(_ context.Context, tr *models.Transcript) error {
	tr.ID = r.nextID
	r.nextID++
	cp := *tr
	r.rows[tr.ID] = &cp
	return nil
}

func (r *memTranscriptRepo) GetByID(_ context.Context, id uint) (*models.Transcript, error) {
	tr, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *tr
	return &cp, nil
}

func (r *memTranscriptRepo) GetByIDForUser(_ context.Context, id, userID uint) (*models.Transcript, error) {
	tr, ok := r.rows[id]
	if !ok || tr.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *tr
	return &cp, nil
}

func (r *memTranscriptRepo) ListByUser(_ context.Context, userID uint, limit, offset int) ([]models.Transcript, int64, error) {
	var out []models.Transcript
	for _, tr := range r.rows {
		if tr.UserID == userID {
			out = append(out, *tr)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memTranscriptRepo) TransitionStatus(_ context.Context, id uint, _, to models.TranscriptStatus) error {
	r.rows[id].Status = to
	return nil
}

func (r *memTranscriptRepo) SaveResult(_ context.Context, id uint, _, _ string, _, _ datatypes.JSON, _ string) error {
	r.rows[id].Status = models.StatusDone
	return nil
}

func (r *memTranscriptRepo) MarkFailed(_ context.Context, id uint, message string) error {
	r.rows[id].Status = models.StatusFailed
	r.rows[id].ErrorMessage = message
	return nil
}

func (r *memTranscriptRepo) SetAudioURL(_ context.Context, id uint, audioURL string) error {
	r.rows[id].AudioURL = audioURL
	return nil
}

func (r *memTranscriptRepo) Delete(_ context.Context, id, userID uint) error {
	tr, ok := r.rows[id]
	if !ok || tr.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(r.rows, id)
	return nil
}

type fakeQueue struct {
	enqueued []uint
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, id uint) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, id)
	return nil
}

func TestTranscriptServiceCreateFromUpload(t *testing.T) {
	repo := newMemTranscriptRepo()
	queue := &fakeQueue{}
	svc := NewTranscriptService(repo, queue, nil, nil, t.TempDir())

	tr, err := svc.CreateFromUpload(context.Background(), 5, "meeting.wav", strings.NewReader("RIFFdata"), "id")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, tr.Status)
	assert.Equal(t, "id", tr.Language)
	assert.True(t, strings.HasSuffix(tr.AudioURL, ".wav"))
	assert.FileExists(t, tr.AudioURL)
	assert.Equal(t, []uint{tr.ID}, queue.enqueued)
}

func TestTranscriptServiceCreateFromUploadEmptyAudio(t *testing.T) {
	svc := NewTranscriptService(newMemTranscriptRepo(), &fakeQueue{}, nil, nil, t.TempDir())

	_, err := svc.CreateFromUpload(context.Background(), 5, "empty.wav", strings.NewReader(""), "")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestTranscriptServiceCreateQueueFailureKeepsRecord(t *testing.T) {
	repo := newMemTranscriptRepo()
	svc := NewTranscriptService(repo, &fakeQueue{err: assert.AnError}, nil, nil, t.TempDir())

	_, err := svc.CreateFromUpload(context.Background(), 5, "a.opus", strings.NewReader("opus"), "")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Len(t, repo.rows, 1, "record stays PENDING for a later requeue")
}

func TestTranscriptServiceCreateFromArtifactMissingFile(t *testing.T) {
	svc := NewTranscriptService(newMemTranscriptRepo(), &fakeQueue{}, nil, nil, t.TempDir())

	_, err := svc.CreateFromArtifact(context.Background(), 5, "/nonexistent.opus", "")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestTranscriptServiceGetScopedToOwner(t *testing.T) {
	repo := newMemTranscriptRepo()
	queue := &fakeQueue{}
	svc := NewTranscriptService(repo, queue, nil, nil, t.TempDir())

	tr, err := svc.CreateFromUpload(context.Background(), 5, "a.opus", strings.NewReader("opus"), "")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 6, tr.ID)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

type fakeSigner struct {
	object string
	err    error
}

func (s *fakeSigner) SignedGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.object = objectName
	return "https://signed.example/" + objectName, nil
}

func TestTranscriptServiceAudioURLForArchivedRecording(t *testing.T) {
	repo := newMemTranscriptRepo()
	repo.rows[1] = &models.Transcript{ID: 1, UserID: 5, Status: models.StatusDone,
		AudioURL: "gs://meetscribe-artifacts/transcripts/1.opus"}
	signer := &fakeSigner{}
	svc := NewTranscriptService(repo, &fakeQueue{}, nil, signer, t.TempDir())

	url, err := svc.AudioURL(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.Equal(t, "transcripts/1.opus", signer.object, "bucket stripped before signing")
	assert.Equal(t, "https://signed.example/transcripts/1.opus", url)
}

func TestTranscriptServiceAudioURLLocalArtifactNotDownloadable(t *testing.T) {
	repo := newMemTranscriptRepo()
	repo.rows[1] = &models.Transcript{ID: 1, UserID: 5, Status: models.StatusDone,
		AudioURL: "/data/uploads/5_1.opus"}
	svc := NewTranscriptService(repo, &fakeQueue{}, nil, &fakeSigner{}, t.TempDir())

	_, err := svc.AudioURL(context.Background(), 5, 1)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestTranscriptServiceDeleteRemovesPendingArtifact(t *testing.T) {
	repo := newMemTranscriptRepo()
	svc := NewTranscriptService(repo, &fakeQueue{}, nil, nil, t.TempDir())

	tr, err := svc.CreateFromUpload(context.Background(), 5, "a.opus", strings.NewReader("opus"), "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 5, tr.ID))
	assert.Empty(t, repo.rows)
	_, statErr := os.Stat(tr.AudioURL)
	assert.True(t, os.IsNotExist(statErr))
}
