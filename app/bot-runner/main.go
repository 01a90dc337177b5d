// bot-runner joins one meeting, records it and exits. The API server spawns
// one of these per bot session so a wedged browser never blocks the server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/danastri/meetscribe/config"
	"github.com/danastri/meetscribe/internal/audio"
	"github.com/danastri/meetscribe/internal/bot"
	"github.com/danastri/meetscribe/internal/browser"
	"github.com/danastri/meetscribe/internal/logger"
	mongorepo "github.com/danastri/meetscribe/internal/repositories/mongo"
	"github.com/danastri/meetscribe/internal/stopflag"
)

type runnerOpts struct {
	sessionID string
	meetingID string
	passcode  string
	botName   string
	outputDir string
	headful   bool
}

func main() {
	opts := &runnerOpts{}

	cmd := &cobra.Command{
		Use:           "bot-runner",
		Short:         "Join a meeting as a recording bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionID, "session-id", "", "bot session id")
	cmd.Flags().StringVar(&opts.meetingID, "meeting-id", "", "numeric meeting id")
	cmd.Flags().StringVar(&opts.passcode, "passcode", "", "meeting passcode")
	cmd.Flags().StringVar(&opts.botName, "bot-name", "", "display name in the meeting")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "./data/bots", "artifact and profile directory")
	cmd.Flags().BoolVar(&opts.headful, "headful", false, "run the browser with a visible window")
	_ = cmd.MarkFlagRequired("session-id")
	_ = cmd.MarkFlagRequired("meeting-id")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts *runnerOpts) error {
	_ = godotenv.Load()
	log := logger.New()

	recorder := audio.NewRecorder()
	if err := recorder.CheckBackend(); err != nil {
		return fmt.Errorf("audio capture unavailable: %w", err)
	}

	// Redis carries the stop flag and live status; Mongo holds the durable
	// session record. Both are optional so the runner still records when
	// infrastructure is degraded.
	var flag stopflag.Flag
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Warn("redis unavailable, using file stop flag")
		flag = stopflag.NewFileFlag(opts.outputDir)
	} else {
		flag = stopflag.NewRedisFlag(config.RedisClient)
	}

	var sessions mongorepo.BotSessionRepository
	if err := config.InitMongo(); err != nil {
		log.WithError(err).Warn("mongo unavailable, session record will not be updated")
	} else {
		sessions = mongorepo.NewBotSessionRepo(config.MongoDB())
	}

	reporter := &bot.StatusReporter{Sessions: sessions, Redis: config.RedisClient, Log: log}

	cfg := bot.Config{
		SessionID:     opts.sessionID,
		MeetingID:     opts.meetingID,
		Passcode:      opts.passcode,
		BotName:       opts.botName,
		OutputDir:     opts.outputDir,
		MinRecordTime: envDuration("BOT_MIN_RECORD_TIME", 5*time.Minute),
		MaxRecordTime: envDuration("BOT_MAX_RECORD_TIME", 2*time.Hour),
	}
	driver, err := browser.NewRodDriver(browser.Options{
		ProfileDir: bot.ProfileDir(cfg.OutputDir, cfg.SessionID),
		Headful:    opts.headful,
	})
	if err != nil {
		reporter.Failure(opts.sessionID, err.Error())
		return fmt.Errorf("launching browser: %w", err)
	}
	session := bot.NewSession(cfg, driver, recorder, flag, reporter, log)

	runErr := session.Run()

	if sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Empty when the recorder never started, e.g. the bot was denied.
		if artifact := recorder.OutputPath(); artifact != "" {
			if _, err := os.Stat(artifact); err == nil {
				if err := sessions.SetArtifact(ctx, opts.sessionID, artifact); err != nil {
					log.WithError(err).Warn("failed to record artifact path")
				}
			}
		}
		if err := sessions.End(ctx, opts.sessionID, session.EndReason(), time.Now().UTC()); err != nil {
			log.WithError(err).Warn("failed to mark session ended")
		}
	}
	return runErr
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
