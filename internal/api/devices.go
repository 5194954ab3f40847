package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/irclimate/internal/bridge"
	"github.com/nerrad567/irclimate/internal/climate"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// maxDeviceIDLen limits path parameters before any lookup.
	maxDeviceIDLen = 100
)

// commandResponse is returned by POST /devices/{id}/commands. Applied is
// false when the IR sequence stopped early; LastError says why and State
// holds whatever was applied before the failure.
type commandResponse struct {
	bridge.DeviceStatus
	Applied bool `json:"applied"`
}

// handleListDevices returns every configured device with its current state.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.controller.Statuses()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device's state, last error and breaker state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}

	status, found := s.controller.Status(id)
	if !found {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGetDeviceHistory returns recorded state changes, newest first.
//
// Query parameters:
//   - limit: 1..200, default 50
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.controller.History(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, bridge.ErrUnknownDevice) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to read state history", "device_id", id, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"history":   entries,
		"count":     len(entries),
	})
}

// handleDeviceCommand runs a command synchronously. The response is sent
// once the whole IR sequence (settle delays included) has finished.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	cmd, err := climate.DecodeCommand(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.logger.Info("API command",
		"device_id", id,
		"command", cmd.Command,
		"subject", subjectFrom(r.Context()),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	ctx := climate.WithSource(r.Context(), climate.SourceAPI)
	status, err := s.controller.Execute(ctx, id, cmd)
	if err != nil {
		switch {
		case errors.Is(err, bridge.ErrUnknownDevice):
			writeNotFound(w, "device not found")
		case errors.Is(err, climate.ErrInvalidCommand):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("command failed", "device_id", id, "error", err)
			writeInternalError(w, "command failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, commandResponse{
		DeviceStatus: status,
		Applied:      status.LastError == "",
	})
}

func deviceIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxDeviceIDLen {
		writeBadRequest(w, "invalid device ID")
		return "", false
	}
	return id, true
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", maxHistoryLimit)
	}

	return limit, nil
}
