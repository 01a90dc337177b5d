package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danastri/meetscribe/internal/models"
	"github.com/danastri/meetscribe/internal/utils"
)

type BotSessionRepository interface {
	Create(ctx context.Context, s *models.BotSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.BotSession, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.BotSession, error)
	SetState(ctx context.Context, sessionID, state string) error
	SetError(ctx context.Context, sessionID, message string) error
	End(ctx context.Context, sessionID, endReason string, endedAt time.Time) error
	SetArtifact(ctx context.Context, sessionID, artifactPath string) error
	SetTranscriptID(ctx context.Context, sessionID string, transcriptID uint) error
}

type botSessionRepo struct {
	col *mongo.Collection
}

func NewBotSessionRepo(db *mongo.Database) BotSessionRepository {
	return &botSessionRepo{col: db.Collection("bot_sessions")}
}

func (r *botSessionRepo) Create(ctx context.Context, s *models.BotSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.State == "" {
		s.State = models.BotStateInitializing
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *botSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.BotSession, error) {
	var s models.BotSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *botSessionRepo) ListByUser(ctx context.Context, userID uint, limit int) ([]models.BotSession, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.BotSession
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *botSessionRepo) SetState(ctx context.Context, sessionID, state string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"state": state}},
	)
	return err
}

func (r *botSessionRepo) SetError(ctx context.Context, sessionID, message string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"error": message}},
	)
	return err
}

func (r *botSessionRepo) End(ctx context.Context, sessionID, endReason string, endedAt time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"state":      models.BotStateEnded,
			"end_reason": endReason,
			"ended_at":   endedAt.UTC(),
		}},
	)
	return err
}

func (r *botSessionRepo) SetArtifact(ctx context.Context, sessionID, artifactPath string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"artifact_path": artifactPath}},
	)
	return err
}

func (r *botSessionRepo) SetTranscriptID(ctx context.Context, sessionID string, transcriptID uint) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"transcript_id": transcriptID}},
	)
	return err
}
