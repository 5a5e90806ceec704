package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/familyos/go-pipeline-service/internal/dlq"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// DLQHandler exposes operator access to terminally failed jobs
type DLQHandler struct {
	dlq *dlq.DeadLetterQueue
	log *logger.Logger
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(dlq *dlq.DeadLetterQueue, log *logger.Logger) *DLQHandler {
	return &DLQHandler{
		dlq: dlq,
		log: log,
	}
}

// GetFailedJobs lists failed jobs with their last_error
func (h *DLQHandler) GetFailedJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	jobs, err := h.dlq.GetAll(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list failed jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "jobs": jobs})
}

// RequeueJob puts a failed job back in the queue with a fresh budget
func (h *DLQHandler) RequeueJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.dlq.Requeue(c.Request.Context(), id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "no failed job with that id"})
			return
		}
		h.log.Error("Failed to requeue job", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PurgeJob deletes a failed job permanently
func (h *DLQHandler) PurgeJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.dlq.Purge(c.Request.Context(), id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "no failed job with that id"})
			return
		}
		h.log.Error("Failed to purge job", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
