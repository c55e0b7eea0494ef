package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/internal/application/service"
	"github.com/garyjia/statecraft/internal/export"
	"github.com/garyjia/statecraft/pkg/machine"
)

// Version is reported by the health check
var Version = "dev"

// Handlers contains all HTTP request handlers
type Handlers struct {
	catalog service.CatalogService
	history service.GenerationService
	logger  *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(catalog service.CatalogService, history service.GenerationService, logger *zap.Logger) *Handlers {
	return &Handlers{
		catalog: catalog,
		history: history,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Machines  int    `json:"machines"`
}

// GraphQuery holds the query parameters of the graph endpoint
type GraphQuery struct {
	Format  string `form:"format"`
	Flatten bool   `form:"flatten"`
}

// EdgesQuery filters the edge listing
type EdgesQuery struct {
	From  string `form:"from"`
	Event string `form:"event"`
}

// RunsQuery holds the query parameters of the run history endpoint
type RunsQuery struct {
	Limit int `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Machines:  len(h.catalog.List()),
		},
	})
}

// ListMachines handles GET /api/v1/machines
func (h *Handlers) ListMachines(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.catalog.List(),
	})
}

// GetMachine handles GET /api/v1/machines/:name
func (h *Handlers) GetMachine(c *gin.Context) {
	def, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    def.Info(),
	})
}

// ListEdges handles GET /api/v1/machines/:name/edges
func (h *Handlers) ListEdges(c *gin.Context) {
	def, ok := h.lookup(c)
	if !ok {
		return
	}

	var q EdgesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	edges := def.Graph().Edges()
	if q.From != "" {
		if !def.Hierarchy().IsLeaf(q.From) {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   fmt.Sprintf("%s is not a leaf state of %s", q.From, def.Name()),
			})
			return
		}
		edges = def.Graph().From(q.From)
	}
	if q.Event != "" {
		filtered := make([]machine.Edge, 0, len(edges))
		for _, e := range edges {
			if e.Event == q.Event {
				filtered = append(filtered, e)
			}
		}
		edges = filtered
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    edges,
	})
}

// ExportGraph handles GET /api/v1/machines/:name/graph
func (h *Handlers) ExportGraph(c *gin.Context) {
	def, ok := h.lookup(c)
	if !ok {
		return
	}

	q := GraphQuery{Format: string(export.FormatMermaid)}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	format, err := export.ParseFormat(q.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	exporter, err := export.New(format, export.Options{Flatten: q.Flatten}, h.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := exporter.Export(&buf, def); err != nil {
		h.logger.Error("Failed to export machine",
			zap.String("machine", def.Name()),
			zap.String("format", string(format)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to export machine"})
		return
	}

	if format == export.FormatXLSX {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, def.Name(), format.Extension()))
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Reload handles POST /api/v1/reload
func (h *Handlers) Reload(c *gin.Context) {
	n, err := h.catalog.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"machines": n},
	})
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var q RunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	if h.history == nil {
		c.JSON(http.StatusOK, Response{Success: true, Data: []interface{}{}})
		return
	}
	runs, err := h.history.History(c.Request.Context(), q.Limit)
	if err != nil {
		h.logger.Error("Failed to list generation runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve runs"})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    runs,
	})
}

// lookup resolves the :name parameter, writing a 404 when it is unknown
func (h *Handlers) lookup(c *gin.Context) (*machine.Definition, bool) {
	name := c.Param("name")
	def, err := h.catalog.Get(name)
	if errors.Is(err, service.ErrMachineNotFound) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: fmt.Sprintf("machine %s not found", name)})
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to get machine", zap.String("machine", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve machine"})
		return nil, false
	}
	return def, true
}
