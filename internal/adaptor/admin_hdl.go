package adaptor

import (
	"context"
	"net/http"

	"seat-reservation/internal/dto/response"
	"seat-reservation/pkg/utils"

	"go.uber.org/zap"
)

// SweepRunner is the part of the expiry sweeper exposed to admins.
type SweepRunner interface {
	SweepNow(ctx context.Context) (*response.SweepResponse, error)
	Stats() *response.SweeperStatsResponse
}

type AdminHandler struct {
	sweeper SweepRunner
	log     *zap.Logger
}

func NewAdminHandler(sweeper SweepRunner, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper: sweeper,
		log:     log.With(zap.String("handler", "admin")),
	}
}

// Sweep handles POST /api/admin/sweeps (admin only)
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.SweepNow(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "sweep expired holds")
		return
	}

	h.log.Info("Manual sweep finished", zap.Int("reclaimed", result.Reclaimed))
	utils.ResponseSuccess(w, "success", result)
}

// SweeperStats handles GET /api/admin/sweeper (admin only)
func (h *AdminHandler) SweeperStats(w http.ResponseWriter, r *http.Request) {
	utils.ResponseSuccess(w, "success", h.sweeper.Stats())
}
