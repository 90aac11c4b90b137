package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/reservoir/internal/aggregator"
	"github.com/tejusbharadwaj/reservoir/internal/api"
	"github.com/tejusbharadwaj/reservoir/internal/models"
)

// DefaultHistory is the window served when a history request has no bounds.
const DefaultHistory = 24 * time.Hour

// Reader is the read side of the aggregator.
type Reader interface {
	CurrentSnapshot(ctx context.Context) models.Snapshot
	HistoricalSeries(ctx context.Context, start, end time.Time, bucket models.Bucket) []models.SeriesPoint
}

type handler struct {
	reader    Reader
	validator *RequestValidator
	location  *time.Location
	logger    *logrus.Logger
	now       func() time.Time
}

type historyResponse struct {
	Start  time.Time            `json:"start"`
	End    time.Time            `json:"end"`
	Bucket models.Bucket        `json:"bucket"`
	Points []models.SeriesPoint `json:"points"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.reader.CurrentSnapshot(r.Context()))
}

// history serves GET /api/v1/history?start=dd/mm/yyyy[ HH:MM]&end=...&bucket=...
func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	end := h.now()
	if raw := query.Get("end"); raw != "" {
		t, err := api.ParseDate(raw, h.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end = t
	}

	start := end.Add(-DefaultHistory)
	if raw := query.Get("start"); raw != "" {
		t, err := api.ParseDate(raw, h.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start = t
	}

	bucket := aggregator.SuggestBucket(start, end)
	if raw := query.Get("bucket"); raw != "" {
		b, err := models.ParseBucket(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bucket = b
	}

	if err := h.validator.Validate(start, end, bucket); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points := h.reader.HistoricalSeries(r.Context(), start, end, bucket)
	h.logger.WithFields(logrus.Fields{
		"start":  start,
		"end":    end,
		"bucket": bucket,
		"points": len(points),
	}).Debug("History served")

	h.respond(w, r, http.StatusOK, historyResponse{
		Start:  start,
		End:    end,
		Bucket: bucket,
		Points: points,
	})
}

// respond writes v, or a 500 when v cannot be encoded.
func (h *handler) respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode response")
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v before touching the response. On an encoding error
// the client gets a 500 and the error is returned.
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
	return err
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, errorResponse{Error: message})
}
