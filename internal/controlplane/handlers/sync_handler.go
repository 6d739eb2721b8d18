package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cellarsync/cellarsync/internal/syncmgr"
)

type SyncHandler struct {
	mgr *syncmgr.Manager
}

func NewSyncHandler(mgr *syncmgr.Manager) *SyncHandler {
	return &SyncHandler{mgr: mgr}
}

// Status returns the current status, pending count and last sync.
func (h *SyncHandler) Status(c *gin.Context) {
	report, err := h.mgr.Report(c.Request.Context())
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}
	c.PureJSON(http.StatusOK, report)
}

// Events streams status events as server-sent events, starting with the current status.
func (h *SyncHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	events := h.mgr.Subscribe()
	defer h.mgr.Unsubscribe(events)

	c.SSEvent("status", h.mgr.Status(ctx))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("status", ev)
			return true
		}
	})
}

func (h *SyncHandler) Push(c *gin.Context) {
	writeOutcome(c, h.mgr.Push(c.Request.Context()))
}

func (h *SyncHandler) Pull(c *gin.Context) {
	writeOutcome(c, h.mgr.Pull(c.Request.Context()))
}

// Resolve runs one of the conflict strategies.
func (h *SyncHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	switch req.Strategy {
	case StrategyPropose:
		writeOutcome(c, h.mgr.ProposeMerge(ctx))
	case StrategyAcceptRemote:
		if !req.Confirm {
			AbortWithError(c, http.StatusBadRequest, ErrCodeNotConfirmed,
				errors.New("accept-remote replaces every local bottle; set confirm to true"))
			return
		}
		writeOutcome(c, h.mgr.AcceptRemote(ctx))
	}
}

func (h *SyncHandler) TestConnection(c *gin.Context) {
	res := h.mgr.TestConnection(c.Request.Context())
	resp := ConnectionResponse{OK: res.OK, Message: res.Message}
	if res.Repository != nil {
		resp.Repository = res.Repository.FullName
		resp.DefaultBranch = res.Repository.DefaultBranch
		resp.CanPush = res.Repository.CanPush
	}
	c.PureJSON(http.StatusOK, resp)
}

func writeOutcome(c *gin.Context, out syncmgr.Outcome) {
	switch {
	case out.Skipped:
		AbortWithError(c, http.StatusConflict, ErrCodeSyncInFlight, errors.New(out.Message))
	case out.Status == syncmgr.StatusNotConfigured:
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeNotConfigured, errors.New(out.Message))
	case out.Status == syncmgr.StatusError:
		c.Error(errors.New(out.Message)) //nolint:errcheck
		c.PureJSON(http.StatusBadGateway, out)
	default:
		c.PureJSON(http.StatusOK, out)
	}
}
