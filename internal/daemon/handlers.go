package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yairfalse/bucketlens/internal/agent"
	"github.com/yairfalse/bucketlens/internal/config"
	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

const maxBodyBytes = 64 << 10

var modeLabels = map[string]string{
	config.ModeClassifier: "basic_agentic",
	config.ModeTools:      "enhanced_agentic",
}

type chatRequest struct {
	Question *string `json:"question"`
}

type chatResponse struct {
	Answer        string `json:"answer"`
	Mode          string `json:"mode"`
	State         string `json:"state"`
	Iterations    int    `json:"iterations"`
	CachedBuckets int    `json:"cached_buckets"`
}

type clearCacheRequest struct {
	Agent string `json:"agent"`
}

func (d *Daemon) handleAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "bucketlens",
		"description": "On-demand S3 bucket analysis without upfront scanning",
		"endpoints": map[string]string{
			"/chat":             "POST - Classifier-routed chat",
			"/enhanced-chat":    "POST - Chat with tool calling",
			"/analyze/{bucket}": "GET - Inspection report for one bucket",
			"/status":           "GET - System status",
			"/clear-cache":      "POST - Clear analysis cache",
			"/health":           "GET - Liveness",
		},
	})
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, d.Health())
}

func (d *Daemon) chatHandler(mode string) http.HandlerFunc {
	route := "/chat"
	if mode == config.ModeTools {
		route = "/enhanced-chat"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := d.hub.Service(mode)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("%s agent is not configured", modeLabels[mode]))
			return
		}

		var req chatRequest
		if err := decodeBody(w, r, &req); err != nil || req.Question == nil {
			writeError(w, http.StatusBadRequest, "Missing 'question' field")
			return
		}
		question := strings.TrimSpace(*req.Question)
		if question == "" {
			writeError(w, http.StatusBadRequest, "Question cannot be empty")
			return
		}

		out, err := svc.Ask(r.Context(), question)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("chat failed")
			writeError(w, statusFor(err), err.Error())
			return
		}

		d.metrics.RecordChatAnswer(r.Context(), route, string(out.State))
		writeJSON(w, http.StatusOK, chatResponse{
			Answer:        out.Answer,
			Mode:          modeLabels[mode],
			State:         string(out.State),
			Iterations:    out.Iterations,
			CachedBuckets: svc.Status().CachedCount,
		})
	}
}

func (d *Daemon) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("agent")
	if scope == "" {
		scope = config.ModeTools
	}
	svc, ok := d.hub.Service(scope)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown agent %q", scope))
		return
	}

	rep, err := svc.Analyze(r.Context(), r.PathValue("bucket"))
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("analyze failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ready",
		"agents": d.hub.Status(),
		"uptime": d.Health().Uptime,
	}

	names, err := d.hub.ListBuckets(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("list buckets for status failed")
		resp["bucket_error"] = err.Error()
	} else {
		resp["bucket_names"] = names
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Daemon) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var req clearCacheRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.Agent == "" {
		req.Agent = agent.ScopeAll
	}

	if err := d.hub.ClearCache(r.Context(), req.Agent); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Cache cleared for %s agent(s)", req.Agent),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsTransient(err),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
