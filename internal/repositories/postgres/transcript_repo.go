package postgres

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/danastri/meetscribe/internal/models"
)

// ErrStatusConflict reports a guarded status transition that matched no row:
// either the transcript is gone or another worker moved it first.
var ErrStatusConflict = errors.New("transcript status changed concurrently")

type TranscriptRepository interface {
	Insert(ctx context.Context, tr *models.Transcript) error
	GetByID(ctx context.Context, id uint) (*models.Transcript, error)
	GetByIDForUser(ctx context.Context, id, userID uint) (*models.Transcript, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Transcript, int64, error)

	// TransitionStatus flips status only when the row is still in from.
	TransitionStatus(ctx context.Context, id uint, from, to models.TranscriptStatus) error
	SaveResult(ctx context.Context, id uint, language, fullText string, segments, qaReport datatypes.JSON, summary string) error
	MarkFailed(ctx context.Context, id uint, errorMessage string) error
	// SetAudioURL repoints the audio reference, e.g. after the local file
	// was archived to object storage.
	SetAudioURL(ctx context.Context, id uint, audioURL string) error

	Delete(ctx context.Context, id, userID uint) error
}

type transcriptRepo struct {
	db *gorm.DB
}

func NewTranscriptRepo(db *gorm.DB) TranscriptRepository {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) Insert(ctx context.Context, tr *models.Transcript) error {
	return r.db.WithContext(ctx).Create(tr).Error
}

func (r *transcriptRepo) GetByID(ctx context.Context, id uint) (*models.Transcript, error) {
	var row models.Transcript
	err := r.db.WithContext(ctx).First(&row, id).Error
	return &row, err
}

func (r *transcriptRepo) GetByIDForUser(ctx context.Context, id, userID uint) (*models.Transcript, error) {
	var row models.Transcript
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&row).Error
	return &row, err
}

func (r *transcriptRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Transcript, int64, error) {
	var rows []models.Transcript
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Transcript{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

func (r *transcriptRepo) TransitionStatus(ctx context.Context, id uint, from, to models.TranscriptStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transcript{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *transcriptRepo) SaveResult(ctx context.Context, id uint, language, fullText string, segments, qaReport datatypes.JSON, summary string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transcript{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]any{
			"status":        models.StatusDone,
			"language":      language,
			"full_text":     fullText,
			"segments_json": segments,
			"qa_json":       qaReport,
			"summary":       summary,
			"error_message": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *transcriptRepo) MarkFailed(ctx context.Context, id uint, errorMessage string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transcript{}).
		Where("id = ? AND status IN ?", id, []models.TranscriptStatus{models.StatusPending, models.StatusProcessing}).
		Updates(map[string]any{
			"status":        models.StatusFailed,
			"error_message": errorMessage,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *transcriptRepo) SetAudioURL(ctx context.Context, id uint, audioURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transcript{}).
		Where("id = ?", id).
		Update("audio_url", audioURL).Error
}

func (r *transcriptRepo) Delete(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Transcript{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
