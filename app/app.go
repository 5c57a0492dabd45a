// Package app wires the bot's components from configuration. Both the
// server and the console build their router here.
package app

import (
	"context"
	"errors"

	"comicbot/annotation"
	"comicbot/backend"
	"comicbot/bot"
	"comicbot/common"
	"comicbot/config"
	"comicbot/media"
	"comicbot/metrics"
	"comicbot/orchestrator"
	"comicbot/pipeline"
	"comicbot/types"

	"github.com/apex/log"
)

// App holds the wired components
type App struct {
	Router  *bot.Router
	Metrics *metrics.Metrics
	Backend *backend.Client

	pipeline *pipeline.Pipeline
	closers  []func() error
}

// Build creates every component. Optional integrations (redis, S3) that
// fail to initialise are logged and left out.
func Build(ctx context.Context, cfg *config.Config, logger log.Interface) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if logger == nil {
		logger = log.Log
	}
	a := &App{Metrics: metrics.New()}

	a.Backend = backend.NewClient(cfg.Backend, backend.WithObserver(a.Metrics))
	tokens := backend.NewTokenProvider(a.Backend, types.Credentials{
		Name:     cfg.Backend.AdminUser,
		Password: cfg.Backend.AdminPassword,
	})
	updater := orchestrator.New(tokens, a.Backend, cfg.Update, logger.WithField("component", "orchestrator"),
		orchestrator.WithRecorder(a.Metrics))

	fetcher := media.NewFetcher(a.Backend, cfg.Media, logger.WithField("component", "media"))

	annotateOpts := []annotation.Option{annotation.WithRecorder(a.Metrics)}
	if cfg.Redis.Enabled() {
		cache, err := annotation.NewRedisCache(cfg.Redis)
		if err != nil {
			logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("explanation cache disabled")
		} else {
			annotateOpts = append(annotateOpts, annotation.WithCache(cache))
			a.closers = append(a.closers, cache.Close)
		}
	}
	annotator := annotation.NewClient(cfg.OpenRouter, logger.WithField("component", "annotation"), annotateOpts...)
	if cfg.OpenRouter.APIKey == "" {
		logger.Warn("OPENROUTER_API_KEY is not set; explanations are disabled")
	}

	var archiver pipeline.Archiver
	if cfg.S3.Enabled() {
		store, err := common.NewS3(ctx, cfg.S3)
		if err != nil {
			logger.WithError(err).WithField("bucket", cfg.S3.Bucket).Warn("comic archive disabled")
		} else {
			archiver = common.NewComicArchive(store, cfg.S3.Prefix, cfg.Media.ThumbnailSize, logger.WithField("component", "archive"))
		}
	}

	a.pipeline = pipeline.New(fetcher, annotator, archiver, logger.WithField("component", "pipeline"))
	a.Router = bot.NewRouter(a.Backend, updater, a.pipeline, cfg.Server, logger.WithField("component", "router"),
		bot.WithRecorder(a.Metrics))

	return a, nil
}

// Close waits for background archive uploads, then releases connections
// opened by Build
func (a *App) Close() error {
	if a.pipeline != nil {
		a.pipeline.Wait()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
