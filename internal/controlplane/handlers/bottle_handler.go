package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/store"
	"github.com/cellarsync/cellarsync/internal/syncmgr"
)

type BottleStore interface {
	AllBottles(ctx context.Context) ([]*cellar.Bottle, error)
	GetBottle(ctx context.Context, id string) (*cellar.Bottle, error)
	PutBottle(ctx context.Context, b *cellar.Bottle) error
	DeleteBottle(ctx context.Context, id string) error
}

type MutationRecorder interface {
	RecordMutation(ctx context.Context, description string) (syncmgr.Event, error)
}

// BottleHandler edits the local cellar. Every change bumps the pending count;
// nothing is pushed until a sync is requested.
type BottleHandler struct {
	store    BottleStore
	recorder MutationRecorder
	now      func() time.Time
}

func NewBottleHandler(bottles BottleStore, recorder MutationRecorder) *BottleHandler {
	return &BottleHandler{store: bottles, recorder: recorder, now: time.Now}
}

func (h *BottleHandler) List(c *gin.Context) {
	bottles, err := h.store.AllBottles(c.Request.Context())
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	resp := BottleListResponse{Bottles: make([]BottleResponse, 0, len(bottles)), Total: len(bottles)}
	for _, b := range bottles {
		resp.Bottles = append(resp.Bottles, newBottleResponse(b))
	}
	c.PureJSON(http.StatusOK, resp)
}

func (h *BottleHandler) Get(c *gin.Context) {
	b, ok := h.load(c)
	if !ok {
		return
	}
	c.PureJSON(http.StatusOK, newBottleResponse(b))
}

func (h *BottleHandler) Create(c *gin.Context) {
	var req CreateBottleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	b, err := cellar.NewBottle(cellar.NewBottleParams{
		Name:         req.Name,
		Vintage:      req.Vintage,
		Type:         cellar.WineType(req.Type),
		Country:      req.Country,
		Region:       req.Region,
		GrapeVariety: req.GrapeVariety,
		Location:     req.Location,
		Quantity:     req.Quantity,
		Price:        req.Price,
		Notes:        req.Notes,
	}, h.now())
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidBottle, err)
		return
	}

	if !h.save(c, b, "Add "+b.DisplayName()) {
		return
	}
	c.PureJSON(http.StatusCreated, newBottleResponse(b))
}

// AddEvent appends a history entry, e.g. consuming one bottle.
func (h *BottleHandler) AddEvent(c *gin.Context) {
	var req BottleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	b, ok := h.load(c)
	if !ok {
		return
	}

	updated, err := b.WithEvent(cellar.HistoryAction(req.Action), req.Quantity, h.now(), req.Notes)
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidBottle, err)
		return
	}

	if !h.save(c, updated, "Update "+updated.DisplayName()) {
		return
	}
	c.PureJSON(http.StatusOK, newBottleResponse(updated))
}

func (h *BottleHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	b, ok := h.load(c)
	if !ok {
		return
	}

	if err := h.store.DeleteBottle(ctx, b.ID); err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}
	if _, err := h.recorder.RecordMutation(ctx, "Remove "+b.DisplayName()); err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BottleHandler) load(c *gin.Context) (*cellar.Bottle, bool) {
	b, err := h.store.GetBottle(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrBottleNotFound):
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, err)
		return nil, false
	case err != nil:
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return nil, false
	}
	return b, true
}

func (h *BottleHandler) save(c *gin.Context, b *cellar.Bottle, description string) bool {
	ctx := c.Request.Context()
	if err := h.store.PutBottle(ctx, b); err != nil {
		var verr *cellar.ValidationError
		if errors.As(err, &verr) {
			AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidBottle, err)
		} else {
			AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		}
		return false
	}
	if _, err := h.recorder.RecordMutation(ctx, description); err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return false
	}
	return true
}
