package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/db"
	dbredis "github.com/beroca11/video-orchestrator/db/redis"
	"github.com/beroca11/video-orchestrator/pipeline"
	"github.com/beroca11/video-orchestrator/provider"
	"github.com/beroca11/video-orchestrator/provider/elevenlabs"
	"github.com/beroca11/video-orchestrator/provider/ffmpeg"
	_ "github.com/beroca11/video-orchestrator/provider/imagineart"
	"github.com/beroca11/video-orchestrator/provider/mock"
	_ "github.com/beroca11/video-orchestrator/provider/pollo"
	"github.com/beroca11/video-orchestrator/provider/s3"
	"github.com/beroca11/video-orchestrator/provider/scriptgen"
	"github.com/beroca11/video-orchestrator/service"
	"github.com/beroca11/video-orchestrator/service/exceptions"
)

func main() {
	cfg := config.LoadConfig()
	logger, err := cfg.Logger()
	if err != nil {
		logrus.Fatal(err)
	}

	var reporter exceptions.Reporter = &exceptions.NoopReporter{}
	if cfg.SentryDSN != "" {
		reporter, err = exceptions.NewSentryReporter(cfg.SentryDSN, cfg.Environment)
		if err != nil {
			logger.Fatal("unable to initialize sentry: ", err)
		}
	}

	var repo db.Repository
	switch cfg.JobStore {
	case "redis":
		repo, err = dbredis.NewStore(cfg.Redis)
		if err != nil {
			logger.Fatal("unable to connect to redis: ", err)
		}
	default:
		repo = db.NewMemory()
	}

	selector := &pipeline.Selector{
		Candidates:      videoCandidates(cfg, logger),
		Attempts:        cfg.RetryAttempts,
		Backoff:         pipeline.Backoff{Initial: cfg.RetryBackoff, Max: cfg.RetryBackoffMax},
		CallTimeout:     cfg.CallTimeout,
		CandidateBudget: cfg.BackendTimeout,
		Log:             logger,
	}

	orch, err := pipeline.New(cfg, repo, selector, buildProviders(cfg, logger), logger, reporter)
	if err != nil {
		logger.Fatal("unable to initialize orchestrator: ", err)
	}

	svc := service.New(cfg, repo, orch, logger)
	app := svc.App()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			logger.WithError(err).Error("shutdown")
		}
	}()

	logger.WithField("addr", cfg.ListenAddr).Info("starting video orchestrator")
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logger.Fatal("server encountered a fatal error: ", err)
	}
}

// videoCandidates resolves the configured backend order into instances.
// A backend without credentials is replaced by its mock so the service
// stays usable for demos, same as the MOCK_PROVIDERS override.
func videoCandidates(cfg *config.Config, logger *logrus.Logger) []pipeline.Candidate {
	var candidates []pipeline.Candidate
	for _, name := range cfg.BackendOrder() {
		factory, err := provider.GetFactory(name)
		if err != nil {
			logger.WithField("backend", name).Warn("unknown video backend in config, skipping")
			continue
		}
		if !cfg.MockProviders {
			backend, err := factory(cfg)
			if err == nil {
				candidates = append(candidates, pipeline.Candidate{Name: name, Backend: backend})
				continue
			}
			logger.WithField("backend", name).WithError(err).Warn("backend not configured, using mock")
		}
		candidates = append(candidates, pipeline.Candidate{
			Name:    name,
			Backend: &mock.Backend{Name: name, Delay: cfg.MockDelay},
		})
	}
	return candidates
}

// buildProviders wires the non-video stages, falling back to mocks
// when credentials are missing.
func buildProviders(cfg *config.Config, logger *logrus.Logger) pipeline.Providers {
	p := pipeline.Providers{
		Script:   &mock.Script{Delay: cfg.MockDelay},
		Voice:    &mock.Voice{Delay: cfg.MockDelay},
		Editor:   &mock.Editor{Delay: cfg.MockDelay},
		Uploader: &mock.Uploader{Delay: cfg.MockDelay},
	}
	if cfg.MockProviders {
		return p
	}

	if w, err := scriptgen.New(cfg.Script); err == nil {
		p.Script = w
	} else {
		logger.WithError(err).Warn("using mock script generator")
	}
	if v, err := elevenlabs.New(cfg.ElevenLabs, cfg.WorkDir); err == nil {
		p.Voice = v
	} else {
		logger.WithError(err).Warn("using mock voice synthesizer")
	}
	p.Editor = ffmpeg.New(cfg.WorkDir)
	if u, err := s3.New(cfg.Storage); err == nil {
		p.Uploader = u
	} else {
		logger.WithError(err).Warn("using mock uploader")
	}
	return p
}
