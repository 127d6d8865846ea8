// cmd/sombra/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"sombra/internal/config"
	"sombra/internal/discord"
	"sombra/internal/logger"
	"sombra/internal/music/player"
	"sombra/internal/music/resolver"
	"sombra/internal/music/track"
	"sombra/internal/storage"
	v "sombra/internal/version"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		logger.S().Fatalf("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, OutputPath: cfg.LogPath})
	defer logger.Sync()
	log := logger.S()

	log.Infof("Starting %s %s...", v.AppName, v.AppVersion)

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers

	if err := dg.Open(); err != nil {
		log.Fatalf("Failed to open Discord gateway: %v", err)
	}
	defer dg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audio output is pluggable; without a backend the player still manages
	// queues and sessions but Play reports an error per track.
	log.Warn("No audio backend configured, playback output is disabled")
	dialer := discord.NewDialer(dg, nil, log)
	res := resolver.NewYouTube(log)

	mp := player.New(res, dialer, store, player.Config{
		MaxQueueSize:      cfg.MaxQueueSize,
		DefaultVolume:     cfg.DefaultVolume,
		MaxRetries:        cfg.MaxRetries,
		InactivityTimeout: cfg.InactivityTimeout,
		ConnectTimeout:    cfg.ConnectTimeout,
		SweepInterval:     cfg.SweepInterval,
		ResolveTimeout:    30 * time.Second,
	}, log)
	defer mp.Close()

	mp.SetOnTrackStart(func(guildID string, item *track.QueueItem) {
		log.Infof("Now playing on guild %s: %s", guildID, item.Track.DisplayName())
	})
	mp.SetOnTrackEnd(func(guildID string, item *track.QueueItem) {
		played := storage.PlayedTrack{
			Title:         item.Track.Title,
			URL:           item.Track.URL,
			Artist:        item.Track.Artist,
			Duration:      item.Track.Duration,
			RequesterName: item.RequesterName,
			PlayedAt:      time.Now(),
		}
		if err := store.AppendPlayedTrack(guildID, played); err != nil {
			log.Warnf("Failed to record play history for guild %s: %v", guildID, err)
		}
	})
	mp.SetOnQueueEmpty(func(guildID string) {
		log.Infof("Queue finished on guild %s", guildID)
	})
	mp.SetOnError(func(guildID, message string) {
		log.Errorf("Player error on guild %s: %s", guildID, message)
	})

	go mp.RunInactivitySweep(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Infof("Received signal %s, shutting down...", s)
	cancel()
}
