package controllers

import (
	"context"
	"log/slog"
	"net/http"
)

type Pinger interface {
	Health(ctx context.Context) error
}

type HealthController struct {
	collab Pinger
	log    *slog.Logger
}

func NewHealthController(collab Pinger, log *slog.Logger) *HealthController {
	return &HealthController{collab: collab, log: log}
}

// Check godoc
// @Summary      Liveness including the collaborator
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /healthz [get]
func (c *HealthController) Check(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.health.Check"

	if err := c.collab.Health(r.Context()); err != nil {
		c.log.Warn("collaborator unhealthy", slog.String("operation", op), slog.String("error", err.Error()))
		writeJSON(w, c.log, op, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, c.log, op, http.StatusOK, map[string]string{"status": "ok"})
}
