package api

import (
	"context"
	"errors"
	"net/http"

	"mp4conv/batch"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	session *batch.Session
	logs    *batch.LogBuffer
	// runCtx outlives individual requests; a batch keeps running after the
	// start request has been answered.
	runCtx context.Context
}

func NewHandler(ctx context.Context, s *batch.Session, logs *batch.LogBuffer) *Handler {
	return &Handler{
		session: s,
		logs:    logs,
		runCtx:  ctx,
	}
}

type DropRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

type groupView struct {
	Name     string         `json:"name"`
	Strategy batch.Strategy `json:"strategy"`
	Files    []string       `json:"files"`
}

type planView struct {
	BatchID   string         `json:"batchId"`
	Category  batch.Category `json:"category"`
	Strategy  batch.Strategy `json:"strategy"`
	Summary   string         `json:"summary"`
	OutputDir string         `json:"outputDir"`
	Groups    []groupView    `json:"groups"`
}

func newPlanView(b *batch.Batch) planView {
	v := planView{
		BatchID:   b.ID,
		Category:  b.Category,
		Strategy:  b.Strategy,
		Summary:   b.Describe(),
		OutputDir: b.OutputDir,
	}
	for _, g := range b.Groups {
		v.Groups = append(v.Groups, groupView{Name: g.BaseName(), Strategy: g.Strategy(), Files: g.Paths()})
	}
	return v
}

// handleDrop classifies and plans a set of dropped files and folders.
func (h *Handler) handleDrop(c *gin.Context) {
	var req DropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.session.Drop(req.Paths)
	var mixed *batch.MixedInputError
	switch {
	case errors.As(err, &mixed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "mixed_input"})
		return
	case errors.Is(err, batch.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "unsupported_format"})
		return
	case errors.Is(err, batch.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read dropped files", "details": err.Error()})
		return
	}

	if b == nil {
		c.JSON(http.StatusOK, gin.H{"noop": true, "message": "MP4 files need no conversion"})
		return
	}
	c.JSON(http.StatusOK, newPlanView(b))
}

// handleStart runs the ready batch in the background.
func (h *Handler) handleStart(c *gin.Context) {
	id, _, err := h.session.Start(h.runCtx)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"batchId": id})
}

// handleCancel kills the running conversion and resets the session.
func (h *Handler) handleCancel(c *gin.Context) {
	h.session.Cancel()
	c.JSON(http.StatusOK, gin.H{"message": "Batch cancelled"})
}

func (h *Handler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) handleLogs(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusOK, []batch.LogLine{})
		return
	}
	c.JSON(http.StatusOK, h.logs.Lines())
}

func (h *Handler) handleClearLogs(c *gin.Context) {
	if h.logs != nil {
		h.logs.Clear()
	}
	log.Debug("Log panel cleared")
	c.Status(http.StatusNoContent)
}
