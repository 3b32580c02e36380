package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/dspw215/internal/hnap"
	"github.com/muurk/dspw215/internal/logging"
	"github.com/muurk/dspw215/internal/version"
)

// maxBodySize bounds PUT bodies.
const maxBodySize = 1024

type stateBody struct {
	On *bool `json:"on"`
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	on, err := s.outlet.On(r.Context())
	if err != nil {
		writePlugError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"on": on})
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	var body stateBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&body); err != nil || body.On == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: `body must be {"on": true|false}`})
		return
	}

	if err := s.outlet.SetOn(r.Context(), *body.On); err != nil {
		writePlugError(w, err)
		return
	}

	s.hub.broadcast(s.outlet.Snapshot())
	writeJSON(w, http.StatusOK, map[string]bool{"on": *body.On})
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	temperature, err := s.outlet.Temperature(r.Context())
	if err != nil {
		writePlugError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"temperature": temperature})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.outlet.Information())
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}

// writePlugError reports a failure talking to the plug as 502, or 504 when
// the plug timed out.
func writePlugError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var hnapErr *hnap.Error
	if errors.As(err, &hnapErr) && hnapErr.Kind == hnap.KindTimeout {
		status = http.StatusGatewayTimeout
	}

	logging.Warn("Plug request failed", zap.Int("status_code", status), zap.Error(err))
	writeJSON(w, status, errorBody{Error: err.Error(), Hint: hnap.TroubleshootingHint(err)})
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the WebSocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r, rec.status, time.Since(start))
	})
}
