package rest

import (
	"errors"

	"github.com/Builder-Lawyers/stack-deployer/internal/application"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	handlers *application.Handlers
	gatherer prometheus.Gatherer
}

func NewServer(handlers *application.Handlers, gatherer prometheus.Gatherer) *Server {
	return &Server{handlers: handlers, gatherer: gatherer}
}

func RegisterHandlers(app *fiber.App, s *Server) {
	app.Post("/webhook", s.Webhook)
	app.Get("/clients/:id", s.GetClientStatus)
	app.Get("/healthz", s.Healthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Webhook hands the raw body to the intake; the intake decides the status code.
func (s *Server) Webhook(c *fiber.Ctx) error {
	resp := s.handlers.Intake.Handle(c.UserContext(), dto.RawEvent{Body: string(c.Body())})
	return c.Status(resp.StatusCode).JSON(resp.Body)
}

func (s *Server) GetClientStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	email := c.Query("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "email query parameter is required"})
	}

	resp, err := s.handlers.GetClientStatus.Query(c.UserContext(), id, email)
	if errors.Is(err, errs.ErrClientNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (s *Server) Healthz(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(dto.MessageBody{Message: "ok"})
}
