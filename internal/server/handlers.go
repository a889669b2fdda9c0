package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/hexgate/hexgate/internal/adapters/telemetry"
	"github.com/hexgate/hexgate/internal/core/query/mapper"
	"github.com/hexgate/hexgate/internal/debug"
	"github.com/hexgate/hexgate/internal/service"
)

// AllowUnfilteredHeader is the header form of the allow_unfiltered opt-in.
const AllowUnfilteredHeader = "X-Allow-Unfiltered"

func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request) {
	op := routeOps[mux.CurrentRoute(r).GetName()]
	vars := mux.Vars(r)
	req := service.Request{
		Operation: op,
		Schema:    vars["schema"],
		Name:      vars["name"],
		RawQuery:  r.URL.RawQuery,
	}

	if op == service.OpCreate || op == service.OpUpdate || op == service.OpCallWithBody {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Body = body
	}
	if op == service.OpUpdate || op == service.OpDelete {
		req.AllowUnfiltered = s.opts.AllowUnfilteredOptIn && allowUnfiltered(r)
	}

	result, err := s.gateway.Execute(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Stream != nil {
		s.writeStream(w, r, result.Stream)
		return
	}

	status := http.StatusOK
	if op == service.OpCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, result.Records)
}

func allowUnfiltered(r *http.Request) bool {
	if r.URL.Query().Get(service.KeyAllowUnfiltered) == "true" {
		return true
	}
	return strings.EqualFold(r.Header.Get(AllowUnfilteredHeader), "true")
}

// writeStream writes records as a JSON array. The first record is fetched
// before the header so that early failures still get an error status.
func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, stream mapper.RecordStream) {
	defer stream.Close()

	more := stream.Next()
	if !more {
		if err := stream.Err(); err != nil {
			writeError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	bw.WriteByte('[')
	for n := 0; more; n++ {
		if n > 0 {
			bw.WriteByte(',')
		}
		if err := enc.Encode(stream.Record()); err != nil {
			debug.Error("failed to encode record", "request_id", RequestID(r.Context()), "error", err)
			return
		}
		more = stream.Next()
	}
	if err := stream.Err(); err != nil {
		// the status is already sent; truncate so clients see invalid JSON
		debug.Error("stream failed after first record", "request_id", RequestID(r.Context()), "error", err)
		bw.Flush()
		return
	}
	bw.WriteString("]\n")
	bw.Flush()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.health == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	status := http.StatusOK
	err := s.health.HealthCheck(r.Context())
	stats := s.health.Stats()
	s.telemetry.RecordConnection(r.Context(), telemetry.ConnectionInfo{
		Event:           "health_check",
		Success:         err == nil,
		OpenConnections: stats.OpenConnections,
	})
	if err != nil {
		status = http.StatusServiceUnavailable
		resp["status"] = "unhealthy"
		resp["error"] = "database unreachable"
		debug.Warn("health check failed", "error", err)
	}
	resp["pool"] = stats
	writeJSON(w, status, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeErrorBody(w, http.StatusNotFound, errorBody{Error: "NotFound", Message: "metrics are disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error("failed to write response", "error", err)
	}
}
