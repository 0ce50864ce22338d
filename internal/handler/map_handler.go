package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/geo/r2"

	"github.com/piosteiner/adenai-map/internal/mapview"
	"github.com/piosteiner/adenai-map/internal/movement"
	"github.com/piosteiner/adenai-map/internal/repository"
	"github.com/piosteiner/adenai-map/internal/scene"
	"github.com/piosteiner/adenai-map/internal/service"
	"github.com/piosteiner/adenai-map/internal/spatial"
	"github.com/piosteiner/adenai-map/pkg/response"
)

// maxSpiralItems caps the spiral preview endpoint
const maxSpiralItems = 500

// MapHandler handles HTTP requests for entity paths and the scene
type MapHandler struct {
	service *service.MapService
}

// NewMapHandler creates a new map handler
func NewMapHandler(service *service.MapService) *MapHandler {
	return &MapHandler{service: service}
}

// ListEntities handles GET /api/v1/entities
func (h *MapHandler) ListEntities(c *gin.Context) {
	entities, err := h.service.Entities(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list entities", err)
		return
	}
	response.Success(c, gin.H{
		"data":  entities,
		"total": len(entities),
	})
}

// GetEntityPath handles GET /api/v1/entities/:id/path
func (h *MapHandler) GetEntityPath(c *gin.Context) {
	view, err := h.service.EntityPath(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to build entity path", err)
		return
	}
	response.Success(c, view)
}

// GetScene handles GET /api/v1/scene
func (h *MapHandler) GetScene(c *gin.Context) {
	state, err := h.service.Scene(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to read scene", err)
		return
	}
	response.Success(c, state)
}

// GetSceneGeoJSON handles GET /api/v1/scene/geojson. The collection is
// returned bare so GIS tools can consume it directly.
func (h *MapHandler) GetSceneGeoJSON(c *gin.Context) {
	fc, err := h.service.GeoJSON(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to export scene", err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

// ShowEntity handles POST /api/v1/scene/entities/:id/show
func (h *MapHandler) ShowEntity(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Show(c.Request.Context(), id); err != nil {
		respondError(c, "Could not show entity on the map", err)
		return
	}
	h.visibility(c, id)
}

// HideEntity handles POST /api/v1/scene/entities/:id/hide
func (h *MapHandler) HideEntity(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Hide(c.Request.Context(), id); err != nil {
		respondError(c, "Could not hide entity on the map", err)
		return
	}
	h.visibility(c, id)
}

// GetVisibility handles GET /api/v1/scene/entities/:id/visible
func (h *MapHandler) GetVisibility(c *gin.Context) {
	h.visibility(c, c.Param("id"))
}

func (h *MapHandler) visibility(c *gin.Context, id string) {
	visible, err := h.service.IsVisible(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to read visibility", err)
		return
	}
	response.Success(c, gin.H{"id": id, "visible": visible})
}

// ShowAll handles POST /api/v1/scene/show-all
func (h *MapHandler) ShowAll(c *gin.Context) {
	if err := h.service.ShowAll(c.Request.Context()); err != nil {
		respondError(c, "Could not show all entities", err)
		return
	}
	h.GetScene(c)
}

// HideAll handles POST /api/v1/scene/hide-all
func (h *MapHandler) HideAll(c *gin.Context) {
	if err := h.service.HideAll(c.Request.Context()); err != nil {
		respondError(c, "Could not hide all entities", err)
		return
	}
	h.GetScene(c)
}

// ViewportRequest is the body of POST /api/v1/scene/viewport
type ViewportRequest struct {
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	Zoom    float64 `json:"zoom"`
	Width   float64 `json:"width" binding:"required,gt=0"`
	Height  float64 `json:"height" binding:"required,gt=0"`
}

// SetViewport handles POST /api/v1/scene/viewport
func (h *MapHandler) SetViewport(c *gin.Context) {
	var req ViewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid viewport", err)
		return
	}

	vp := spatial.Viewport{
		Center: spatial.Coord{X: req.CenterX, Y: req.CenterY},
		Zoom:   req.Zoom,
		Size:   r2.Point{X: req.Width, Y: req.Height},
	}
	if err := h.service.SetViewport(c.Request.Context(), vp); err != nil {
		respondError(c, "Could not change the viewport", err)
		return
	}
	response.Success(c, vp)
}

// DispatchEvent handles POST /api/v1/scene/objects/:handle/:event
func (h *MapHandler) DispatchEvent(c *gin.Context) {
	handle := mapview.Handle(c.Param("handle"))
	if err := h.service.Dispatch(c.Request.Context(), handle, c.Param("event")); err != nil {
		respondError(c, "Could not deliver event", err)
		return
	}
	h.GetScene(c)
}

// GetSpiralLayout handles GET /api/v1/layout/spiral?n=
func (h *MapHandler) GetSpiralLayout(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "0"))
	if err != nil || n < 0 || n > maxSpiralItems {
		response.BadRequest(c, "n must be an integer between 0 and "+strconv.Itoa(maxSpiralItems))
		return
	}

	offsets := h.service.SpiralLayout(n)
	out := make([][2]float64, len(offsets))
	for i, p := range offsets {
		out[i] = [2]float64{p.X, p.Y}
	}
	response.Success(c, gin.H{"n": n, "offsets": out})
}

// GetDuration handles GET /api/v1/duration?start=&end=
func (h *MapHandler) GetDuration(c *gin.Context) {
	start, err := movement.ParseDate(c.Query("start"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid start date", err)
		return
	}

	var end *time.Time
	if raw := c.Query("end"); raw != "" {
		t, err := movement.ParseDate(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "Invalid end date", err)
			return
		}
		end = &t
	}

	duration, ok := movement.DescribeDuration(start, end)
	result := gin.H{"range": movement.FormatDateRange(start, end)}
	if ok {
		result["duration"] = duration
	}
	response.Success(c, result)
}

// Reload handles POST /api/v1/admin/reload
func (h *MapHandler) Reload(c *gin.Context) {
	result, err := h.service.Reload(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to reload entities", err)
		return
	}
	response.Success(c, result)
}

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mapview.ErrUnknownEntity),
		errors.Is(err, repository.ErrEntityNotFound),
		errors.Is(err, scene.ErrUnknownHandle):
		status = http.StatusNotFound
	case errors.Is(err, scene.ErrUnsupportedEvent),
		errors.Is(err, scene.ErrInvalidViewport):
		status = http.StatusBadRequest
	case errors.Is(err, scene.ErrLoopClosed):
		status = http.StatusServiceUnavailable
	}
	response.Error(c, status, message, err)
}
