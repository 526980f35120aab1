package handler

import (
	"net/http"
	"strconv"

	appctx "github.com/T50-commits/BigEye-DesktopApp-sub000/internal/context"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/model"
	"github.com/T50-commits/BigEye-DesktopApp-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// JobHandler serves the reserve / finalize lifecycle for the desktop client.
type JobHandler struct {
	jobs *service.JobService
	log  zerolog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs *service.JobService, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		jobs: jobs,
		log:  log.With().Str("component", "handler.job").Logger(),
	}
}

// RegisterRoutes registers job routes on the authenticated group.
func (h *JobHandler) RegisterRoutes(api *gin.RouterGroup) {
	job := api.Group("/job")
	{
		job.POST("/reserve", h.Reserve)
		job.POST("/finalize", h.Finalize)
		job.GET("/history", h.History)
		job.GET("/:token/events", h.Events)
	}
}

// ─────────────────────────────────────────────
// POST /job/reserve
// ─────────────────────────────────────────────

// Reserve locks the credits for a batch and hands back the job token
// together with the processing config.
func (h *JobHandler) Reserve(c *gin.Context) {
	var req model.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.jobs.Reserve(c.Request.Context(), appctx.GetUserID(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// POST /job/finalize
// ─────────────────────────────────────────────

// Finalize settles a job and refunds what was not used. Repeating a
// finalize returns the first outcome.
func (h *JobHandler) Finalize(c *gin.Context) {
	var req model.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.jobs.Finalize(c.Request.Context(), appctx.GetUserID(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// GET /job/history?limit=20
// ─────────────────────────────────────────────

type JobHistoryResponse struct {
	Jobs []model.Job `json:"jobs"`
}

// History lists the caller's most recent jobs.
func (h *JobHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	jobs, err := h.jobs.History(c.Request.Context(), appctx.GetUserID(c), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	c.JSON(http.StatusOK, JobHistoryResponse{Jobs: jobs})
}

// ─────────────────────────────────────────────
// GET /job/:token/events
// ─────────────────────────────────────────────

type JobEventsResponse struct {
	Events []model.JobEvent `json:"events"`
}

// Events returns the audit trail of one of the caller's jobs.
func (h *JobHandler) Events(c *gin.Context) {
	events, err := h.jobs.Events(c.Request.Context(), c.Param("token"), appctx.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if events == nil {
		events = []model.JobEvent{}
	}
	c.JSON(http.StatusOK, JobEventsResponse{Events: events})
}
