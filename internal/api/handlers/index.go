package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

// IndexBuilder builds the index over a range
type IndexBuilder interface {
	Build(ctx context.Context, r contracts.DateRange) (*contracts.BuildSummary, error)
}

// IndexReader serves built index artifacts
type IndexReader interface {
	GetPerformance(ctx context.Context, r contracts.DateRange) (*contracts.PerformanceResponse, error)
	GetComposition(ctx context.Context, date string) (*contracts.CompositionResponse, error)
	GetChanges(ctx context.Context, r contracts.DateRange) (*contracts.ChangesResponse, error)
}

// WorkbookExporter writes index artifacts to an xlsx file and returns its path
type WorkbookExporter interface {
	Export(ctx context.Context, r contracts.DateRange) (string, error)
}

// IndexHandler handles index construction and query endpoints
// ⭐ SSOT: index API handlers live only in this struct
type IndexHandler struct {
	builder  IndexBuilder
	reader   IndexReader
	exporter WorkbookExporter
	logger   *logger.Logger
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(builder IndexBuilder, reader IndexReader, exporter WorkbookExporter, log *logger.Logger) *IndexHandler {
	return &IndexHandler{
		builder:  builder,
		reader:   reader,
		exporter: exporter,
		logger:   log.WithComponent("index_handler"),
	}
}

// Build constructs the index over the requested range
// POST /api/index/build
func (h *IndexHandler) Build(w http.ResponseWriter, r *http.Request) {
	dr, err := rangeFromBody(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	summary, err := h.builder.Build(r.Context(), dr)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetPerformance returns daily and cumulative returns
// GET /api/index/performance?start_date=2024-01-02&end_date=2024-01-31
func (h *IndexHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	dr, err := rangeFromQuery(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp, err := h.reader.GetPerformance(r.Context(), dr)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

type compositionQuery struct {
	Date string `json:"date" validate:"required,isodate"`
}

// GetComposition returns the constituents of one trading date
// GET /api/index/composition?date=2024-01-02
func (h *IndexHandler) GetComposition(w http.ResponseWriter, r *http.Request) {
	q := compositionQuery{Date: r.URL.Query().Get("date")}
	if err := validateStruct(q); err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp, err := h.reader.GetComposition(r.Context(), q.Date)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetChanges returns ENTRY/EXIT events in a range
// GET /api/index/changes?start_date=2024-01-02&end_date=2024-01-31
func (h *IndexHandler) GetChanges(w http.ResponseWriter, r *http.Request) {
	dr, err := rangeFromQuery(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp, err := h.reader.GetChanges(r.Context(), dr)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Export streams an xlsx workbook of the range and removes it afterwards
// POST /api/index/export
func (h *IndexHandler) Export(w http.ResponseWriter, r *http.Request) {
	dr, err := rangeFromBody(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	path, err := h.exporter.Export(r.Context(), dr)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.logger.WithError(err).WithField("path", path).Warn("Failed to remove export file")
		}
	}()

	name := filepath.Base(path)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}
