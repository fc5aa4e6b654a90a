package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/w-h-a/triage/repository"
)

type handler struct {
	repo   repository.Repository
	logger *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *handler) save(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	record, err := decodeNumbers(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(strings.TrimSpace(record.PatientId())) == 0 {
		writeError(w, http.StatusBadRequest, "patient_id must be a non-empty string")
		return
	}
	if len(strings.TrimSpace(record.Timestamp())) == 0 {
		writeError(w, http.StatusBadRequest, "timestamp must be a non-empty string")
		return
	}

	saved, err := h.repo.Save(r.Context(), record)
	if err != nil {
		h.storageError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	patientId := mux.Vars(r)["patient_id"]

	opts := []repository.ListOption{}

	if raw := r.URL.Query().Get("limit"); len(raw) > 0 {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts = append(opts, repository.WithLimit(limit))
	}

	records, err := h.repo.ListByPatient(r.Context(), patientId, opts...)
	if err != nil {
		h.storageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"count": len(records),
	})
}

func (h *handler) storageError(w http.ResponseWriter, err error) {
	var storageErr *repository.StorageError
	if errors.As(err, &storageErr) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":     storageErr.Message,
			"operation": storageErr.Operation,
		})
		return
	}

	h.logger.Error("unexpected repository error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decodeNumbers turns decoded numbers into int64 when they are exact
// integers that fit and float64 otherwise. A number neither can hold exactly
// is an error.
func decodeNumbers(payload map[string]any) (repository.Record, error) {
	var bad error

	tree := repository.Transform(payload, func(v any) any {
		n, ok := v.(json.Number)
		if !ok {
			return v
		}
		out, err := exactNumber(n)
		if err != nil && bad == nil {
			bad = err
		}
		return out
	})

	if bad != nil {
		return nil, bad
	}

	return repository.Record(tree.(map[string]any)), nil
}

func exactNumber(n json.Number) (any, error) {
	d, err := repository.NumberFromString(n.String())
	if err != nil {
		return nil, err
	}

	out := repository.NumberLeaf(d)

	f, ok := out.(float64)
	if !ok {
		return out, nil
	}

	back, ok := repository.DecimalLeaf(f).(decimal.Decimal)
	if !ok || !back.Equal(d) {
		return nil, fmt.Errorf("number %s cannot be stored exactly", n)
	}

	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
