package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/danastri/meetscribe/internal/cache"
	"github.com/danastri/meetscribe/internal/models"
	pgrepo "github.com/danastri/meetscribe/internal/repositories/postgres"
	"github.com/danastri/meetscribe/internal/storage"
	"github.com/danastri/meetscribe/internal/utils"
)

// Queue hands accepted transcripts to the background pipeline.
type Queue interface {
	Enqueue(ctx context.Context, transcriptID uint) error
}

type TranscriptService interface {
	// CreateFromUpload stores an uploaded audio file and queues it.
	CreateFromUpload(ctx context.Context, userID uint, filename string, audio io.Reader, language string) (*models.Transcript, error)
	// CreateFromArtifact queues an audio file already on disk, e.g. a bot
	// recording.
	CreateFromArtifact(ctx context.Context, userID uint, artifactPath, language string) (*models.Transcript, error)
	Get(ctx context.Context, userID, id uint) (*models.Transcript, error)
	List(ctx context.Context, userID uint, limit, offset int) ([]models.Transcript, int64, error)
	// AudioURL returns a short-lived download URL for an archived recording.
	AudioURL(ctx context.Context, userID, id uint) (string, error)
	Delete(ctx context.Context, userID, id uint) error
}

// cacheTTL bounds staleness for cached terminal transcripts. Terminal rows
// only change on delete, which invalidates explicitly.
const cacheTTL = 10 * time.Minute

// signedURLTTL is how long a recording download link stays valid.
const signedURLTTL = 15 * time.Minute

type transcriptService struct {
	transcripts pgrepo.TranscriptRepository
	queue       Queue
	cache       cache.Cache    // optional
	signer      storage.Signer // optional, downloads unavailable without it
	uploadDir   string
}

func NewTranscriptService(transcripts pgrepo.TranscriptRepository, queue Queue, c cache.Cache, signer storage.Signer, uploadDir string) TranscriptService {
	return &transcriptService{transcripts: transcripts, queue: queue, cache: c, signer: signer, uploadDir: uploadDir}
}

func cacheKey(userID, id uint) string {
	return "transcript:" + strconv.FormatUint(uint64(userID), 10) + ":" + strconv.FormatUint(uint64(id), 10)
}

func (s *transcriptService) CreateFromUpload(ctx context.Context, userID uint, filename string, audio io.Reader, language string) (*models.Transcript, error) {
	const op = "TranscriptService.CreateFromUpload"

	if userID == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".opus"
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create upload dir", err)
	}
	path := filepath.Join(s.uploadDir,
		strconv.FormatUint(uint64(userID), 10)+"_"+strconv.FormatInt(time.Now().UnixNano(), 10)+ext)

	f, err := os.Create(path)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store audio file", err)
	}
	n, err := io.Copy(f, audio)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, utils.E(utils.CodeInternal, op, "failed to store audio file", err)
	}
	if n == 0 {
		_ = os.Remove(path)
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio file is empty", nil)
	}

	return s.create(ctx, op, userID, path, language)
}

func (s *transcriptService) CreateFromArtifact(ctx context.Context, userID uint, artifactPath, language string) (*models.Transcript, error) {
	const op = "TranscriptService.CreateFromArtifact"

	if userID == 0 || artifactPath == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and artifact path are required", nil)
	}
	if _, err := os.Stat(artifactPath); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "artifact does not exist", err)
	}
	return s.create(ctx, op, userID, artifactPath, language)
}

func (s *transcriptService) create(ctx context.Context, op string, userID uint, audioPath, language string) (*models.Transcript, error) {
	tr := &models.Transcript{
		UserID:   userID,
		AudioURL: audioPath,
		Status:   models.StatusPending,
		Language: language,
	}
	if err := s.transcripts.Insert(ctx, tr); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create transcript", err)
	}

	if err := s.queue.Enqueue(ctx, tr.ID); err != nil {
		// The record stays PENDING; a requeue sweep or manual retry can
		// pick it up, so the upload is not lost.
		return nil, utils.E(utils.CodeUnavailable, op, "failed to queue transcription", err)
	}
	return tr, nil
}

func (s *transcriptService) Get(ctx context.Context, userID, id uint) (*models.Transcript, error) {
	const op = "TranscriptService.Get"

	if s.cache != nil {
		var cached models.Transcript
		if hit, err := s.cache.GetJSON(ctx, cacheKey(userID, id), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	tr, err := s.transcripts.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "transcript not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get transcript", err)
	}

	if s.cache != nil && tr.Status.Terminal() {
		_ = s.cache.SetJSON(ctx, cacheKey(userID, id), tr, cacheTTL)
	}
	return tr, nil
}

func (s *transcriptService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Transcript, int64, error) {
	const op = "TranscriptService.List"

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.transcripts.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, utils.E(utils.CodeInternal, op, "failed to list transcripts", err)
	}
	return rows, total, nil
}

func (s *transcriptService) AudioURL(ctx context.Context, userID, id uint) (string, error) {
	const op = "TranscriptService.AudioURL"

	tr, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}

	// Only archived recordings are downloadable; local paths are working
	// files the pipeline deletes on completion.
	object, archived := strings.CutPrefix(tr.AudioURL, "gs://")
	if !archived {
		return "", utils.E(utils.CodeNotFound, op, "no downloadable recording for this transcript", nil)
	}
	if s.signer == nil {
		return "", utils.E(utils.CodeUnavailable, op, "artifact store is not configured", nil)
	}
	if i := strings.IndexByte(object, '/'); i >= 0 {
		object = object[i+1:] // drop the bucket, the signer knows its own
	}

	url, err := s.signer.SignedGetURL(ctx, object, signedURLTTL)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to sign download url", err)
	}
	return url, nil
}

func (s *transcriptService) Delete(ctx context.Context, userID, id uint) error {
	const op = "TranscriptService.Delete"

	tr, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.transcripts.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.E(utils.CodeNotFound, op, "transcript not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete transcript", err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, cacheKey(userID, id))
	}

	// Leftover artifact of an unfinished job; DONE jobs already cleaned up.
	if !tr.Status.Terminal() && tr.AudioURL != "" {
		_ = os.Remove(tr.AudioURL)
	}
	return nil
}
