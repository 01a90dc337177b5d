// Package workers hosts the background pool that turns recorded audio
// artifacts into finished transcripts.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/danastri/meetscribe/internal/models"
	"github.com/danastri/meetscribe/internal/postprocess"
	"github.com/danastri/meetscribe/internal/providers/diarize"
	"github.com/danastri/meetscribe/internal/providers/llm"
	"github.com/danastri/meetscribe/internal/providers/stt"
	"github.com/danastri/meetscribe/internal/repositories/postgres"
	"github.com/danastri/meetscribe/internal/storage"
)

// TranscribeWorkerPool consumes queued transcript ids from a Redis stream and
// runs the full pipeline per job: transcribe, diarize, clean, align, QA,
// summarize, persist. Each job is claimed via a guarded PENDING to PROCESSING
// transition, so a redelivered or double-enqueued id is processed once.
type TranscribeWorkerPool struct {
	Redis       *redis.Client
	Transcripts postgres.TranscriptRepository
	NumWorkers  int

	Engine     stt.Engine
	Diarizer   diarize.Diarizer // optional, UNKNOWN speakers without it
	Summarizer llm.Summarizer   // optional

	// Archive receives a copy of the audio before local cleanup. Optional.
	Archive storage.Uploader

	Postprocess postprocess.Config

	// KeepArtifacts disables the best-effort deletion of the audio file
	// after a successful run.
	KeepArtifacts bool

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *TranscribeWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Transcripts == nil || p.Engine == nil {
		return errors.New("TranscribeWorkerPool missing dependency: Redis/Transcripts/Engine must be set")
	}
	if p.Stream == "" {
		p.Stream = "transcripts:stream"
	}
	if p.Group == "" {
		p.Group = "transcribe-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.Postprocess.GapThreshold == 0 {
		p.Postprocess = postprocess.DefaultConfig()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

// Enqueue queues a transcript for processing.
func (p *TranscribeWorkerPool) Enqueue(ctx context.Context, transcriptID uint) error {
	return p.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.Stream,
		Values: map[string]any{"transcript_id": strconv.FormatUint(uint64(transcriptID), 10)},
	}).Err()
}

func (p *TranscribeWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *TranscribeWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	raw, _ := msg.Values["transcript_id"].(string)
	id64, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id64 == 0 {
		p.Logger.WithField("redis_id", msg.ID).Warn("dropping message without transcript_id")
		return
	}
	p.process(ctx, uint(id64))
}

// process runs the pipeline for one transcript id. Every exit path leaves the
// transcript in a terminal status except the status-conflict skips, where
// another writer owns the record.
func (p *TranscribeWorkerPool) process(ctx context.Context, id uint) {
	logger := p.Logger
	if logger == nil {
		logger = logrus.New()
	}
	log := logger.WithField("transcript_id", id)

	tr, err := p.Transcripts.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("transcript lookup failed")
		return
	}
	if tr.Status.Terminal() {
		log.WithField("status", tr.Status).Info("transcript already terminal, skipping")
		return
	}

	if err := p.Transcripts.TransitionStatus(ctx, id, models.StatusPending, models.StatusProcessing); err != nil {
		if errors.Is(err, postgres.ErrStatusConflict) {
			log.Info("transcript claimed elsewhere, skipping")
			return
		}
		log.WithError(err).Error("failed to claim transcript")
		return
	}
	p.publishStatus(ctx, id, models.StatusProcessing, "")

	if _, err := os.Stat(tr.AudioURL); err != nil {
		p.fail(ctx, log, id, "audio artifact not found: "+tr.AudioURL)
		return
	}

	result, err := p.Engine.Transcribe(ctx, tr.AudioURL, tr.Language)
	if err != nil {
		p.fail(ctx, log, id, "transcription failed: "+err.Error())
		return
	}

	cleaned := postprocess.Clean(p.Postprocess, result.Segments)

	// Diarization failure is not fatal: fall back to gap-heuristic turns,
	// a transcript with rough speakers beats no transcript.
	var turns []diarize.Turn
	if p.Diarizer != nil {
		turns, err = p.Diarizer.Diarize(ctx, tr.AudioURL)
		if err != nil {
			log.WithError(err).Warn("diarization failed, speakers will be unattributed")
			turns = nil
		}
	}
	if turns == nil {
		turns = diarize.TurnsFromGaps(result.Segments, p.Postprocess.GapThreshold)
	}
	cleaned = postprocess.AssignSpeakers(cleaned, diarize.MergeTurns(turns))

	report := postprocess.QA(p.Postprocess, cleaned, result.Segments, result.Duration)

	summary := ""
	if p.Summarizer != nil && len(cleaned) > 0 {
		summary, err = p.Summarizer.Summarize(ctx, joinText(cleaned), result.Language)
		if err != nil {
			log.WithError(err).Warn("summarization failed, continuing without summary")
			summary = ""
		}
	}

	segmentsJSON, err := json.Marshal(cleaned)
	if err != nil {
		p.fail(ctx, log, id, "failed to encode segments: "+err.Error())
		return
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		p.fail(ctx, log, id, "failed to encode qa report: "+err.Error())
		return
	}

	if err := p.Transcripts.SaveResult(ctx, id, result.Language, joinText(cleaned), segmentsJSON, reportJSON, summary); err != nil {
		if errors.Is(err, postgres.ErrStatusConflict) {
			log.Info("transcript no longer processing, discarding result")
			return
		}
		p.fail(ctx, log, id, "failed to persist transcript result: "+err.Error())
		return
	}
	p.publishStatus(ctx, id, models.StatusDone, "")

	p.archiveArtifact(ctx, log, id, tr.AudioURL)
	if !p.KeepArtifacts {
		if err := os.Remove(tr.AudioURL); err != nil {
			log.WithError(err).Warn("failed to delete audio artifact")
		}
	}

	log.WithFields(logrus.Fields{
		"segments": len(cleaned),
		"coverage": report.Coverage,
	}).Info("transcript done")
}

// archiveArtifact mirrors the audio into object storage before the local
// copy goes away. Best-effort; the transcript is already persisted.
func (p *TranscribeWorkerPool) archiveArtifact(ctx context.Context, log *logrus.Entry, id uint, audioPath string) {
	if p.Archive == nil {
		return
	}
	f, err := os.Open(audioPath)
	if err != nil {
		log.WithError(err).Warn("failed to open artifact for archiving")
		return
	}
	defer f.Close()

	object := "transcripts/" + strconv.FormatUint(uint64(id), 10) + filepath.Ext(audioPath)
	stored, err := p.Archive.Upload(ctx, object, "audio/ogg", f)
	if err != nil {
		log.WithError(err).Warn("failed to archive artifact")
		return
	}
	// Repoint the record so downloads resolve against the archive once the
	// local copy is deleted.
	if err := p.Transcripts.SetAudioURL(ctx, id, stored); err != nil {
		log.WithError(err).Warn("failed to update audio url after archiving")
	}
	log.WithField("stored", stored).Info("artifact archived")
}

func (p *TranscribeWorkerPool) fail(ctx context.Context, log *logrus.Entry, id uint, message string) {
	log.Error(message)
	if err := p.Transcripts.MarkFailed(ctx, id, message); err != nil {
		log.WithError(err).Error("failed to mark transcript failed")
	}
	p.publishStatus(ctx, id, models.StatusFailed, message)
}

// publishStatus notifies live listeners on the transcript's status channel.
// Best-effort; persistence is the source of truth.
func (p *TranscribeWorkerPool) publishStatus(ctx context.Context, id uint, status models.TranscriptStatus, message string) {
	if p.Redis == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"type":          "status",
		"transcript_id": id,
		"status":        status,
		"message":       message,
	})
	ch := "transcripts:" + strconv.FormatUint(uint64(id), 10) + ":status"
	_ = p.Redis.Publish(ctx, ch, string(payload)).Err()
}

func joinText(segments []postprocess.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
