package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

// Acquirer downloads market data for the last days calendar days
type Acquirer interface {
	Acquire(ctx context.Context, days int) (*contracts.AcquisitionResult, error)
}

// DataHandler handles market data endpoints
// ⭐ SSOT: data API handlers live only in this struct
type DataHandler struct {
	collector   Acquirer
	defaultDays int
	logger      *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(col Acquirer, defaultDays int, log *logger.Logger) *DataHandler {
	return &DataHandler{
		collector:   col,
		defaultDays: defaultDays,
		logger:      log.WithComponent("data_handler"),
	}
}

// AcquireRequest represents a data acquisition request
type AcquireRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=3650"`
}

// Acquire downloads and stores market data
// POST /api/data/acquire
func (h *DataHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	var req AcquireRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if req.Days == 0 {
		req.Days = h.defaultDays
	}

	h.logger.WithField("days", req.Days).Info("Data acquisition triggered")

	result, err := h.collector.Acquire(r.Context(), req.Days)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
