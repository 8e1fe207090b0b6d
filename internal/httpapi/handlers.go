package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"promobot/internal/advertise"
	"promobot/internal/state"
	logx "promobot/pkg/logx"
)

type sessionRequest struct {
	TenantKey    string `json:"tenant_key"`
	DryRun       bool   `json:"dry_run"`
	AutoSchedule bool   `json:"auto_schedule"`
}

type scheduleRequest struct {
	TenantKey string `json:"tenant_key"`
	DueAtMs   int64  `json:"due_at_ms,omitempty"`
	DelayMs   int64  `json:"delay_ms,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TenantKey) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenant_key is required"})
		return
	}

	res, err := s.runner.Run(r.Context(), req.TenantKey, advertise.Options{
		DryRun:                  req.DryRun,
		AutoScheduleIfThrottled: req.AutoSchedule,
	})
	if err != nil {
		s.log.Warn("session request failed", logx.String("tenant", req.TenantKey), logx.Err(err))
		status := http.StatusInternalServerError
		if errors.Is(err, state.ErrTenantNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TenantKey) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenant_key is required"})
		return
	}
	_, ok, err := s.repo.Tenant(r.Context(), req.TenantKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "tenant not found"})
		return
	}

	whenMs := req.DueAtMs
	if whenMs <= 0 && req.DelayMs > 0 {
		whenMs = time.Now().UnixMilli() + req.DelayMs
	}
	sched, err := s.runtime.Create(r.Context(), req.TenantKey, whenMs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": sched})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.Schedules(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": list})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
