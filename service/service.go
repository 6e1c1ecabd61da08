// Package service exposes the orchestration core over HTTP: job
// submission, status polling, result retrieval and backend discovery.
package service

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	"github.com/beroca11/video-orchestrator/config"
	"github.com/beroca11/video-orchestrator/db"
	"github.com/beroca11/video-orchestrator/job"
	"github.com/beroca11/video-orchestrator/pipeline"
	"github.com/beroca11/video-orchestrator/provider"
)

// Orchestrator is the part of the pipeline the handlers call.
type Orchestrator interface {
	Start(req job.Request) (*job.Job, error)
	Cancel(id string) bool
}

// Service wires the HTTP handlers to the repository and orchestrator.
type Service struct {
	cfg  *config.Config
	repo db.Repository
	orch Orchestrator
	log  *logrus.Logger
}

// New builds the HTTP service.
func New(cfg *config.Config, repo db.Repository, orch Orchestrator, log *logrus.Logger) *Service {
	return &Service{cfg: cfg, repo: repo, orch: orch, log: log}
}

// App builds the fiber application with all routes registered.
func (s *Service) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(logger.New())

	app.Post("/generate", s.generate)
	app.Get("/jobs", s.listJobs)
	app.Get("/job/:id", s.getStatus)
	app.Get("/job/:id/result", s.getResult)
	app.Delete("/job/:id", s.deleteJob)
	app.Get("/download/:id", s.download)
	app.Get("/backends", s.listBackends)
	app.Get("/health", s.health)
	return app
}

func (s *Service) generate(c *fiber.Ctx) error {
	var req job.Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Backend != job.BackendAuto {
		if _, err := provider.GetFactory(req.Backend); err != nil {
			return badRequest(c, "unknown video backend: "+req.Backend)
		}
	}

	j, err := s.orch.Start(req)
	if err != nil {
		s.log.WithError(err).Error("starting job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to start job",
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  j.ID,
		"status":  j.Status,
		"message": "Video generation started. Poll /job/{job_id} for progress.",
	})
}

func (s *Service) listJobs(c *fiber.Ctx) error {
	jobs, err := s.repo.ListJobs()
	if err != nil {
		s.log.WithError(err).Error("listing jobs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list jobs",
		})
	}
	return c.JSON(fiber.Map{"jobs": jobs, "total": len(jobs)})
}

func (s *Service) getStatus(c *fiber.Ctx) error {
	j, err := s.repo.GetJob(c.Params("id"))
	if err != nil {
		return s.jobError(c, err)
	}
	return c.JSON(j)
}

func (s *Service) getResult(c *fiber.Ctx) error {
	j, err := s.repo.GetJob(c.Params("id"))
	if err != nil {
		return s.jobError(c, err)
	}
	if j.Status != job.StatusCompleted || j.Result == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  job.ErrNotReady.Error(),
			"status": j.Status,
		})
	}
	return c.JSON(j.Result)
}

func (s *Service) deleteJob(c *fiber.Ctx) error {
	id := c.Params("id")
	// Cancel first so an in-flight run observes the checkpoint and
	// stops writing before the record disappears.
	cancelled := s.orch.Cancel(id)
	if err := s.repo.DeleteJob(id); err != nil {
		return s.jobError(c, err)
	}
	return c.JSON(fiber.Map{"job_id": id, "deleted": true, "cancelled": cancelled})
}

func (s *Service) download(c *fiber.Ctx) error {
	j, err := s.repo.GetJob(c.Params("id"))
	if err != nil {
		return s.jobError(c, err)
	}
	if j.Status != job.StatusCompleted || j.Result == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  job.ErrNotReady.Error(),
			"status": j.Status,
		})
	}
	return c.Redirect(j.Result.VideoURL, fiber.StatusFound)
}

func (s *Service) listBackends(c *fiber.Ctx) error {
	descriptions := make([]*provider.Description, 0)
	for _, name := range s.cfg.BackendOrder() {
		d, err := provider.Describe(name, s.cfg)
		if err != nil {
			s.log.WithField("backend", name).WithError(err).Warn("describing backend")
			continue
		}
		descriptions = append(descriptions, d)
	}
	return c.JSON(fiber.Map{"backends": descriptions, "default": job.BackendAuto})
}

func (s *Service) health(c *fiber.Ctx) error {
	jobs, err := s.repo.ListJobs()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	byStatus := map[job.Status]int{}
	for _, j := range jobs {
		byStatus[j.Status]++
	}
	return c.JSON(fiber.Map{"status": "ok", "jobs": byStatus})
}

func (s *Service) jobError(c *fiber.Ctx, err error) error {
	if errors.Is(err, db.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Job not found"})
	}
	s.log.WithError(err).Error("job store error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

var _ Orchestrator = (*pipeline.Orchestrator)(nil)
