package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/danastri/meetscribe/internal/bot"
	"github.com/danastri/meetscribe/internal/meetlink"
	"github.com/danastri/meetscribe/internal/models"
	mongorepo "github.com/danastri/meetscribe/internal/repositories/mongo"
	"github.com/danastri/meetscribe/internal/utils"
)

// BotSupervisor is the process-level control surface the service drives.
// *bot.Supervisor satisfies it.
type BotSupervisor interface {
	Launch(spec bot.LaunchSpec) (int, error)
	Terminate(sessionID string) (artifactPath string, err error)
	Alive(sessionID string) bool
}

type BotService interface {
	// Deploy parses the meeting link and launches a recording bot.
	Deploy(ctx context.Context, userID uint, meetingLink, botName, language string) (*models.BotSession, error)
	Status(ctx context.Context, userID uint, sessionID string) (*models.BotSession, error)
	List(ctx context.Context, userID uint) ([]models.BotSession, error)
	// Stop terminates the bot and, when a recording was produced, queues it
	// for transcription. Stopping an already-ended session is a no-op.
	Stop(ctx context.Context, userID uint, sessionID string) (*models.BotSession, error)
}

type botService struct {
	sessions    mongorepo.BotSessionRepository
	supervisor  BotSupervisor
	transcripts TranscriptService
}

func NewBotService(sessions mongorepo.BotSessionRepository, supervisor BotSupervisor, transcripts TranscriptService) BotService {
	return &botService{sessions: sessions, supervisor: supervisor, transcripts: transcripts}
}

func (s *botService) Deploy(ctx context.Context, userID uint, meetingLink, botName, language string) (*models.BotSession, error) {
	const op = "BotService.Deploy"

	if userID == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	meetingLink = meetlink.Clean(meetingLink)
	details, err := meetlink.Parse(meetingLink)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unrecognized meeting link", err)
	}
	if botName == "" {
		botName = "Meetscribe Bot"
	}

	session := &models.BotSession{
		SessionID:   uuid.NewString(),
		UserID:      userID,
		MeetingID:   details.MeetingID,
		MeetingLink: meetingLink,
		BotName:     botName,
		State:       models.BotStateInitializing,
		Language:    language,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create bot session", err)
	}

	if _, err := s.supervisor.Launch(bot.LaunchSpec{
		SessionID: session.SessionID,
		MeetingID: details.MeetingID,
		Passcode:  details.Passcode,
		BotName:   botName,
	}); err != nil {
		_ = s.sessions.SetError(ctx, session.SessionID, err.Error())
		_ = s.sessions.End(ctx, session.SessionID, "launch failed", time.Now().UTC())
		return nil, utils.E(utils.CodeInternal, op, "failed to launch bot process", err)
	}
	return session, nil
}

func (s *botService) Status(ctx context.Context, userID uint, sessionID string) (*models.BotSession, error) {
	const op = "BotService.Status"
	return s.getOwned(ctx, op, userID, sessionID)
}

func (s *botService) List(ctx context.Context, userID uint) ([]models.BotSession, error) {
	const op = "BotService.List"

	rows, err := s.sessions.ListByUser(ctx, userID, 50)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list bot sessions", err)
	}
	return rows, nil
}

func (s *botService) Stop(ctx context.Context, userID uint, sessionID string) (*models.BotSession, error) {
	const op = "BotService.Stop"

	session, err := s.getOwned(ctx, op, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State == models.BotStateEnded {
		return session, nil
	}

	artifact, err := s.supervisor.Terminate(sessionID)
	if err != nil && !errors.Is(err, bot.ErrSessionNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to terminate bot process", err)
	}

	if err := s.sessions.End(ctx, sessionID, bot.ReasonStopRequested, time.Now().UTC()); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to mark session ended", err)
	}

	if artifact != "" {
		if err := s.sessions.SetArtifact(ctx, sessionID, artifact); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to record artifact path", err)
		}
		tr, err := s.transcripts.CreateFromArtifact(ctx, userID, artifact, session.Language)
		if err != nil {
			// The recording survived; the session record keeps the path so
			// the audio can be requeued later.
			return nil, err
		}
		if err := s.sessions.SetTranscriptID(ctx, sessionID, tr.ID); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to link transcript", err)
		}
	}

	return s.getOwned(ctx, op, userID, sessionID)
}

func (s *botService) getOwned(ctx context.Context, op string, userID uint, sessionID string) (*models.BotSession, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	session, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "bot session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get bot session", err)
	}
	if session.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "bot session not found", nil)
	}
	return session, nil
}
