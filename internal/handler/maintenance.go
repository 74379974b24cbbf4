package handler

import (
	"net/http"
	"strconv"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/middleware"
	"github.com/Payphone-Digital/adminauth/internal/service"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/gin-gonic/gin"
)

// MaintenanceHandler exposes the token sweeps to admins. Every endpoint
// accepts ?dry_run=true.
type MaintenanceHandler struct {
	sweeper     *service.Sweeper
	defaultDays int
}

func NewMaintenanceHandler(sweeper *service.Sweeper, defaultDays int) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: sweeper, defaultDays: defaultDays}
}

func (h *MaintenanceHandler) PruneExpired(c *gin.Context) {
	h.run(c, "PruneExpired", func(opts *service.SweepOptions) error {
		opts.PruneExpired = true
		return nil
	})
}

func (h *MaintenanceHandler) PruneOld(c *gin.Context) {
	h.run(c, "PruneOld", func(opts *service.SweepOptions) error {
		days := h.defaultDays
		if raw := c.Query("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return apperrors.ErrInvalidInput
			}
			days = n
		}
		opts.PruneOld = true
		opts.OlderThanDays = days
		return nil
	})
}

func (h *MaintenanceHandler) LimitTokens(c *gin.Context) {
	h.run(c, "LimitTokens", func(opts *service.SweepOptions) error {
		opts.EnforceLimits = true
		return nil
	})
}

func (h *MaintenanceHandler) Statistics(c *gin.Context) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", "TokenStatistics")

	stats, err := h.sweeper.Statistics(ctx)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, stats))
}

func (h *MaintenanceHandler) run(c *gin.Context, function string, configure func(*service.SweepOptions) error) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", function)

	opts := service.SweepOptions{}
	if raw := c.Query("dry_run"); raw != "" {
		dryRun, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.AbortWithError(c, apperrors.ErrInvalidInput)
			return
		}
		opts.DryRun = dryRun
	}
	if err := configure(&opts); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	report, err := h.sweeper.Run(ctx, opts)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Maintenance completed", report))
}
