package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gamecatalog/catalog"
	"gamecatalog/store"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewHandlers(catalog *catalog.Service, logger *slog.Logger) *Handlers {
	return &Handlers{
		catalog: catalog,
		logger:  logger,
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write JSON response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, detail string) {
	writeJSON(w, logger, status, map[string]string{"detail": detail})
}

func writeMessage(w http.ResponseWriter, logger *slog.Logger, message string) {
	writeJSON(w, logger, http.StatusOK, map[string]string{"message": message})
}

// decodeBody reads a JSON object of at most maxBodyBytes, refusing fields
// the target does not declare.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// queryInt returns def when the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	values, ok := r.URL.Query()[name]
	if !ok || len(values) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// writeServiceError maps catalog and store errors onto status codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrInvalidEntry),
		errors.Is(err, catalog.ErrDuplicate),
		errors.Is(err, catalog.ErrInvalidPage),
		errors.Is(err, catalog.ErrEmptyCatalog):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrBusy):
		h.logger.Warn("store busy", slog.Any("error", err), slog.String("request_id", GetRequestIDFromContext(r.Context())))
		writeError(w, h.logger, http.StatusServiceUnavailable, "service busy, try again")
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
			slog.String("request_id", GetRequestIDFromContext(r.Context())),
		)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handlers) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req catalog.NewEntry
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("game added", slog.Int64("id", entry.ID), slog.String("request_id", GetRequestIDFromContext(r.Context())))
	writeMessage(w, h.logger, fmt.Sprintf("game %s added successfully", entry.GameName))
}

func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", catalog.DefaultPage)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", catalog.DefaultLimit)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.catalog.List(r.Context(), page, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *Handlers) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid game id")
		return
	}

	var patch catalog.EntryPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if _, err := h.catalog.Update(r.Context(), id, patch); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("game updated", slog.Int64("id", id), slog.String("request_id", GetRequestIDFromContext(r.Context())))
	writeMessage(w, h.logger, "game details updated successfully")
}

func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid game id")
		return
	}

	deleted, err := h.catalog.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("game deleted", slog.Int64("id", id), slog.String("request_id", GetRequestIDFromContext(r.Context())))
	writeMessage(w, h.logger, fmt.Sprintf("game %s deleted successfully", deleted.GameName))
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.catalog.Healthy(ctx); err != nil {
		h.logger.Error("health check failed", slog.Any("error", err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
