package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"typofix/src/config"
	"typofix/src/history"
	"typofix/src/logutil"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	listModelsTimeout   = 20 * time.Second
)

// settingsView is the settings payload with the API key masked.
type settingsView struct {
	HasAPIKey        bool   `json:"has_api_key"`
	APIKeyMasked     string `json:"api_key_masked"`
	Preprompt        string `json:"preprompt"`
	Model            string `json:"model"`
	TurboMode        bool   `json:"turbo_mode"`
	ShowDuck         bool   `json:"show_duck"`
	ShowNotification bool   `json:"show_notification"`
}

func newSettingsView(st config.Settings) settingsView {
	v := settingsView{
		HasAPIKey:        st.APIKey != "",
		Preprompt:        st.Preprompt,
		Model:            st.Model,
		TurboMode:        st.TurboMode,
		ShowDuck:         st.ShowDuck,
		ShowNotification: st.ShowNotification,
	}
	if v.HasAPIKey {
		v.APIKeyMasked = logutil.RedactKey(st.APIKey)
	}
	return v
}

type settingsUpdate struct {
	APIKey           *string `json:"api_key"`
	Preprompt        *string `json:"preprompt"`
	Model            *string `json:"model"`
	TurboMode        *bool   `json:"turbo_mode"`
	ShowDuck         *bool   `json:"show_duck"`
	ShowNotification *bool   `json:"show_notification"`
}

func (u settingsUpdate) apply(st *config.Settings) {
	if u.APIKey != nil && strings.TrimSpace(*u.APIKey) != "" {
		st.APIKey = strings.TrimSpace(*u.APIKey)
	}
	if u.Preprompt != nil {
		st.Preprompt = *u.Preprompt
	}
	if u.Model != nil && strings.TrimSpace(*u.Model) != "" {
		st.Model = strings.TrimSpace(*u.Model)
	}
	if u.TurboMode != nil {
		st.TurboMode = *u.TurboMode
	}
	if u.ShowDuck != nil {
		st.ShowDuck = *u.ShowDuck
	}
	if u.ShowNotification != nil {
		st.ShowNotification = *u.ShowNotification
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetSettings(w, r)
	case http.MethodPut:
		s.handlePutSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	st, err := s.opts.Settings.Load()
	if err != nil {
		// Load still returns usable defaults for a corrupt file.
		s.log.Warnw("Settings file unreadable, serving defaults", "error", err)
	}
	writeJSON(w, http.StatusOK, newSettingsView(st))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	st, err := s.opts.Settings.Update(req.apply)
	if err != nil {
		s.log.Errorw("Failed to save settings", "error", err)
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}
	s.log.Infow("Settings saved", "model", st.Model, "turbo", st.TurboMode, "api_key", logutil.RedactKey(st.APIKey))
	writeJSON(w, http.StatusOK, newSettingsView(st))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.ListModels == nil {
		http.Error(w, "Model listing unavailable", http.StatusNotImplemented)
		return
	}
	st, _ := s.opts.Settings.Load()
	if st.APIKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "API key not set"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), listModelsTimeout)
	defer cancel()
	models, err := s.opts.ListModels(ctx, st.APIKey)
	if err != nil {
		s.log.Warnw("Failed to list models", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models, "current": st.Model})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.History == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "runs": []history.Run{}, "stats": history.Stats{}})
		return
	}

	limit := defaultHistoryLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, maxHistoryLimit)
	}
	runs, err := s.opts.History.RecentRuns(limit)
	if err != nil {
		s.log.Errorw("Failed to get history", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}
	stats, err := s.opts.History.Stats()
	if err != nil {
		s.log.Errorw("Failed to get stats", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "runs": runs, "stats": stats})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
