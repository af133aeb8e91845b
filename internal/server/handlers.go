package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/model"
	"github.com/Tiliavir/hamster-panel/internal/panel"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

type handlers struct {
	panel *panel.Panel
	log   *zap.SugaredLogger
}

// StartRequest is the body of POST /facts.
type StartRequest struct {
	Name string `json:"name" binding:"required"`
}

// Status is the payload of GET /status.
type Status struct {
	Label          string      `json:"label"`
	Current        *model.Fact `json:"current"`
	ElapsedMinutes int64       `json:"elapsed_minutes"`
	Elapsed        string      `json:"elapsed"`
	TotalMinutes   int64       `json:"total_minutes"`
	Total          string      `json:"total"`
}

func (h *handlers) getStatus(c *gin.Context) {
	snap := h.panel.Ledger().Snapshot()
	now := h.panel.Now()

	st := Status{
		Label:        panel.Label(snap, now),
		TotalMinutes: ledger.TotalMinutes(snap, now),
	}
	st.Total = timecalc.FormatDuration(st.TotalMinutes)
	if cur, ok := ledger.CurrentActivity(snap); ok {
		st.Current = &cur
		st.ElapsedMinutes = ledger.ElapsedMinutes(cur, now)
	}
	st.Elapsed = timecalc.FormatDuration(st.ElapsedMinutes)
	h.success(c, http.StatusOK, st, snapshotMeta(snap))
}

func (h *handlers) getFacts(c *gin.Context) {
	snap := h.panel.Ledger().Snapshot()
	facts := snap.Facts
	if facts == nil {
		facts = []model.Fact{}
	}
	meta := snapshotMeta(snap)
	meta["count"] = len(facts)
	meta["rows"] = panel.Rows(snap, h.panel.Now())
	h.success(c, http.StatusOK, facts, meta)
}

func (h *handlers) postFact(c *gin.Context) {
	var body StartRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, http.StatusBadRequest, "Invalid request", err)
		return
	}
	id, err := h.panel.Start(c.Request.Context(), body.Name)
	if err != nil {
		h.fail(c, statusCode(err), "Failed to start activity", err)
		return
	}
	h.success(c, http.StatusCreated, gin.H{"id": id}, map[string]any{
		"label": panel.Label(h.panel.Ledger().Snapshot(), h.panel.Now()),
	})
}

func (h *handlers) postStop(c *gin.Context) {
	fact, stopped, err := h.panel.Stop(c.Request.Context())
	if err != nil {
		h.fail(c, statusCode(err), "Failed to stop tracking", err)
		return
	}
	var data any
	if stopped {
		data = fact
	}
	h.success(c, http.StatusOK, data, map[string]any{"stopped": stopped})
}

func (h *handlers) success(c *gin.Context, status int, data any, meta map[string]any) {
	c.JSON(status, Success(data, meta))
}

func (h *handlers) fail(c *gin.Context, status int, msg string, err error) {
	h.log.Errorw(msg, "request_id", c.GetString("request_id"), "error", err)
	c.JSON(status, Failure(status, msg+": "+err.Error()))
}

func snapshotMeta(snap *ledger.Snapshot) map[string]any {
	meta := map[string]any{"skipped": snap.Skipped}
	if !snap.FetchedAt.IsZero() {
		meta["fetched_at"] = snap.FetchedAt
	}
	return meta
}
