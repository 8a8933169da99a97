package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/timoverbrugghe/subgen-go/internal/config"
	"github.com/timoverbrugghe/subgen-go/internal/core"
	"github.com/timoverbrugghe/subgen-go/internal/httpapi"
	"github.com/timoverbrugghe/subgen-go/internal/mediaclient"
	"github.com/timoverbrugghe/subgen-go/internal/notify"
	"github.com/timoverbrugghe/subgen-go/internal/remote"
	"github.com/timoverbrugghe/subgen-go/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server accepting webhooks, ASR requests and batch submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		Log.Info().Msg("debug logging enabled via DEBUG")
	}

	serveCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()

	store := core.NewStore(&Log, buildNotifyFunc(cfg))
	store.StartRetentionSweeper(serveCtx, 0)
	gate := core.NewGate(cfg.ConcurrentTranscriptions)
	inspector := core.NewMediaInspector(&Log)
	stager := core.NewAudioStager(&Log, cfg.TranscodeDir)
	remoteClient := remote.NewClient(cfg.RemoteConfig(), &Log)

	var indexers []core.IndexerClient
	if cfg.Plex.Server != "" && cfg.Plex.Token != "" {
		indexers = append(indexers, mediaclient.NewPlexClient(cfg.Plex.Server, cfg.Plex.Token, &Log))
	}
	if cfg.Jellyfin.Server != "" && cfg.Jellyfin.Token != "" {
		indexers = append(indexers, mediaclient.NewJellyfinClient(cfg.Jellyfin.Server, cfg.Jellyfin.Token, false, &Log))
	}
	if cfg.Emby.Server != "" && cfg.Emby.Token != "" {
		indexers = append(indexers, mediaclient.NewEmbyClient(cfg.Emby.Server, cfg.Emby.Token, &Log))
	}
	if bz := mediaclient.NewBazarrClient(cfg.Bazarr.URL, cfg.Bazarr.APIKey, &Log); bz.IsConfigured() {
		indexers = append(indexers, bz)
	}

	orchestrator := core.NewOrchestrator(&Log, store, gate, inspector, stager, remoteClient, indexers, core.OrchestratorConfig{
		Naming:                  cfg.Naming,
		PreferredAudioLanguages: cfg.Transcription.PreferredAudioLanguages,
		CandidateLocales:        cfg.Transcription.LanguageDetectionCandidates,
		LyricForAudio:           cfg.Transcription.LRCForAudioFiles,
		CreditLineEnabled:       cfg.Transcription.AppendCreditLine,
		UploadFormat:            cfg.AudioFormat,
		PollInterval:            cfg.JobPollInterval,
	})

	batch := core.NewBatchIngress(&Log, store, inspector, orchestrator)
	detector := core.NewLanguageDetector(&Log, stager, remoteClient, cfg.Transcription.LanguageDetectionCandidates)

	deps := &httpapi.Deps{
		Log:          &Log,
		Store:        store,
		Orchestrator: orchestrator,
		Batch:        batch,
		Detector:     detector,
		SourceName:   "subgen",
		Version:      version.GetInfo().StatusString(),
		Webhook: httpapi.WebhookConfig{
			ProcessAddedMedia: cfg.Processing.ProcessAddedMedia,
			ProcessOnPlay:     cfg.Processing.ProcessOnPlay,
			SubtitleLanguage:  cfg.SubtitleLanguage,
			NotifyDownstream:  true,
			ApplySkipConfig:   true,
			PathMapping:       cfg.PathMapping,
		},
		SkipConfig: cfg.Skip,
	}

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.ServerHost
	httpCfg.Port = cfg.ServerPort

	server, err := httpapi.NewServer(httpCfg, deps)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	Log.Info().Msg("shutting down")
	return server.Shutdown()
}

// buildNotifyFunc adapts the configured Pushover notifier into the Store's
// NotifyFunc hook, fired fire-and-forget whenever a job fails.
func buildNotifyFunc(cfg *config.Config) core.NotifyFunc {
	notifier := notify.New(cfg.Notification, &Log)
	return func(session *core.Session, job *core.Job) {
		if job.Status != core.StatusFailed {
			return
		}
		notifier.NotifyJobFailed(context.Background(), job.FilePath, job.Error, job.JobID, string(job.Source))
	}
}
