package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/openmensa/rfid-station/internal/core"
	"github.com/openmensa/rfid-station/internal/logging"
	"github.com/openmensa/rfid-station/internal/service"
	"github.com/openmensa/rfid-station/internal/settings"
)

// Version information (set via ldflags in production builds)
var (
	Version   = ""
	BuildTime = ""
	GitCommit = ""
)

func init() {
	// If version wasn't set via ldflags, this is a dev build
	// Try to get VCS info from Go's build info
	if Version == "" {
		Version = "dev"
		if info, ok := debug.ReadBuildInfo(); ok {
			var vcsRevision, vcsTime string
			var vcsModified bool
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					vcsRevision = setting.Value
				case "vcs.time":
					vcsTime = setting.Value
				case "vcs.modified":
					vcsModified = setting.Value == "true"
				}
			}
			if vcsRevision != "" {
				shortCommit := vcsRevision
				if len(shortCommit) > 7 {
					shortCommit = shortCommit[:7]
				}
				GitCommit = vcsRevision
				Version = "dev-" + shortCommit
				if vcsModified {
					Version += "-dirty"
				}
			}
			if vcsTime != "" {
				BuildTime = vcsTime
			}
		}
	}
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// NewMux constructs and returns the HTTP mux for the API.
func (s *Server) NewMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.hub.Handler())

	// API routes
	mux.HandleFunc("/v1/rfid/status", s.corsMiddleware(s.handleRFIDStatus))
	mux.HandleFunc("/v1/rfid/history", s.corsMiddleware(s.handleRFIDHistory))
	mux.HandleFunc("/v1/rfid/manual-scan", s.corsMiddleware(s.handleManualScan))
	mux.HandleFunc("/v1/rfid/reconnect", s.corsMiddleware(s.handleReconnect))
	mux.HandleFunc("/v1/reservations/confirm", s.corsMiddleware(s.handleConfirmReservation))
	mux.HandleFunc("/v1/version", s.corsMiddleware(s.handleVersion))
	mux.HandleFunc("/v1/health", s.corsMiddleware(s.handleHealth))
	mux.HandleFunc("/v1/logs", s.corsMiddleware(s.handleLogs))
	mux.HandleFunc("/v1/crashes", s.corsMiddleware(s.handleCrashes))
	mux.HandleFunc("/v1/settings", s.corsMiddleware(s.handleSettings))
	return mux
}

// recoveryMiddleware catches panics and logs them to crash files.
func (s *Server) recoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := debug.Stack()
				context := fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)

				// Send to Sentry if enabled
				logging.CapturePanic(rec, stack, context)

				// Log to in-memory logger
				s.log.Error(logging.CatHTTP, fmt.Sprintf("PANIC in %s: %v", context, rec), map[string]any{
					"panic":  fmt.Sprintf("%v", rec),
					"stack":  string(stack),
					"method": r.Method,
					"path":   r.URL.Path,
				})

				// Write crash log to file
				crashFile, err := logging.WriteCrashLog(rec, stack)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Failed to write crash log: %v\n", err)
					crashFile = ""
				}

				// Print to stderr
				fmt.Fprintf(os.Stderr, "\n=== PANIC in %s ===\n%v\n\nStack trace:\n%s\n", context, rec, string(stack))

				// Send 500 response
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":     "internal server error",
					"crashFile": crashFile,
				})
			}
		}()
		next(w, r)
	}
}

// corsMiddleware adds CORS headers to allow browser access from any origin.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Wrap with recovery middleware
		s.recoveryMiddleware(next)(w, r)
	}
}

func (s *Server) handleRFIDStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, s.supervisor.Status())
}

func (s *Server) handleRFIDHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
			if limit > maxHistoryLimit {
				limit = maxHistoryLimit
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scans": s.history.Recent(limit),
		"count": s.history.Len(),
	})
}

// handleManualScan feeds a UID through the scan pipeline. Only available
// with the mock reader; a station with real hardware rejects it.
func (s *Server) handleManualScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UID string `json:"uid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "uid is required",
		})
		return
	}

	if err := s.supervisor.SimulateScan(req.UID); err != nil {
		if errors.Is(err, core.ErrNotMockMode) {
			respondJSON(w, http.StatusConflict, map[string]string{
				"error": err.Error(),
			})
			return
		}
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"success": "scan processed",
		"uid":     core.CanonicalUID(req.UID),
	})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if err := s.supervisor.Reconnect(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
		return
	}

	s.log.Info(logging.CatHTTP, "Reconnect requested via API", nil)
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "reconnecting",
	})
}

func (s *Server) handleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ReservationID string `json:"reservationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "reservationId is required",
		})
		return
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	result, err := s.reservations.Confirm(ctx, req.ReservationID)
	switch {
	case errors.Is(err, service.ErrReservationNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
		return
	case errors.Is(err, service.ErrAlreadyServed), errors.Is(err, service.ErrCancelled):
		respondJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	case err != nil:
		s.log.Error(logging.CatHTTP, "Reservation confirm failed", map[string]any{
			"reservationId": req.ReservationID,
			"error":         err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to confirm reservation",
		})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	st := s.supervisor.Status()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"readerConnected": st.Connected,
		"mockMode":        st.MockMode,
		"state":           st.State,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Error logged but not returned (header already sent)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Parse query parameters
		query := r.URL.Query()

		// Limit (default 100, max 1000)
		limit := 100
		if limitStr := query.Get("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
				limit = l
				if limit > 1000 {
					limit = 1000
				}
			}
		}

		// Min level filter
		var minLevel *logging.Level
		if levelStr := query.Get("level"); levelStr != "" {
			switch strings.ToLower(levelStr) {
			case "debug":
				l := logging.LevelDebug
				minLevel = &l
			case "info":
				l := logging.LevelInfo
				minLevel = &l
			case "warn":
				l := logging.LevelWarn
				minLevel = &l
			case "error":
				l := logging.LevelError
				minLevel = &l
			}
		}

		// Category filter
		var category *logging.Category
		if catStr := query.Get("category"); catStr != "" {
			c := logging.Category(catStr)
			category = &c
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"entries": s.log.GetEntries(limit, minLevel, category),
			"stats":   s.log.Stats(),
		})

	case http.MethodDelete:
		// Clear all logs
		s.log.Clear()
		respondJSON(w, http.StatusOK, map[string]string{
			"success": "logs cleared",
		})

	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCrashes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()

		// Check if requesting a specific crash log
		filename := query.Get("file")
		if filename != "" {
			content, err := logging.ReadCrashLog(filename)
			if err != nil {
				respondJSON(w, http.StatusNotFound, map[string]string{
					"error": "crash log not found: " + err.Error(),
				})
				return
			}
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"filename": filename,
				"content":  content,
			})
			return
		}

		// List crash logs
		limit := 20
		if limitStr := query.Get("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
				limit = l
				if limit > 100 {
					limit = 100
				}
			}
		}

		logs, err := logging.GetCrashLogs(limit)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to list crash logs: " + err.Error(),
			})
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"crashes":  logs,
			"crashDir": logging.CrashLogDir(),
		})

	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// handleSettings handles GET and POST requests for user settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		st := settings.Get()
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"crashReporting": st.CrashReporting,
		})

	case http.MethodPost:
		var req struct {
			CrashReporting *bool `json:"crashReporting"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid request body: " + err.Error(),
			})
			return
		}

		if req.CrashReporting != nil {
			if err := settings.SetCrashReporting(*req.CrashReporting); err != nil {
				respondJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "failed to save settings: " + err.Error(),
				})
				return
			}
		}

		st := settings.Get()
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"crashReporting": st.CrashReporting,
			"message":        "Settings updated. Restart may be required for some changes to take effect.",
		})

	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}
