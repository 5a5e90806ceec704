package handler

import (
	"net/http"

	"github.com/familyos/go-pipeline-service/internal/service"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/gin-gonic/gin"
)

// PipelineHandler exposes the periodic pipeline entry points over HTTP.
// Each one is stateless: it runs a bounded batch and returns a JSON
// envelope with ok plus run details.
type PipelineHandler struct {
	dispatch  *service.DispatchService
	conflicts *service.ConflictService
	digests   *service.DigestService
	reminders *service.ReminderService
	log       *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(dispatch *service.DispatchService, conflicts *service.ConflictService, digests *service.DigestService, reminders *service.ReminderService, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		dispatch:  dispatch,
		conflicts: conflicts,
		digests:   digests,
		reminders: reminders,
		log:       log,
	}
}

func (h *PipelineHandler) fail(c *gin.Context, err error) {
	h.log.Error("Pipeline run failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
}

// Dispatch runs one push dispatcher pass
func (h *PipelineHandler) Dispatch(c *gin.Context) {
	results, err := h.dispatch.Dispatch(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"processed": len(results),
		"results":   results,
	})
}

// Conflicts runs one conflict detector pass
func (h *PipelineHandler) Conflicts(c *gin.Context) {
	result, err := h.conflicts.Run(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"windowStart":        result.WindowStart,
		"windowEnd":          result.WindowEnd,
		"conflicts_inserted": result.Inserted,
		"failed":             result.Failures,
	})
}

// DigestDaily runs one daily digest build
func (h *PipelineHandler) DigestDaily(c *gin.Context) {
	result, err := h.digests.BuildDaily(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"day":              result.PeriodStart,
		"digests_upserted": result.Upserted,
		"failed":           result.Failures,
	})
}

// DigestWeekly runs one weekly digest build
func (h *PipelineHandler) DigestWeekly(c *gin.Context) {
	result, err := h.digests.BuildWeekly(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"periodStart":      result.PeriodStart,
		"periodEnd":        result.PeriodEnd,
		"digests_upserted": result.Upserted,
		"failed":           result.Failures,
	})
}

// Reminders runs one reminder generator pass
func (h *PipelineHandler) Reminders(c *gin.Context) {
	result, err := h.reminders.Run(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"events": result.Events,
		"tasks":  result.Tasks,
	})
}
