package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/delegation-oracle/internal/optimize"
	"github.com/yourorg/delegation-oracle/internal/otel"
	"github.com/yourorg/delegation-oracle/internal/scan"
	"github.com/yourorg/delegation-oracle/internal/types"
)

// apiResponse is the uniform success envelope
type apiResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// apiError is the uniform error envelope
type apiError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// instrument wraps a handler with rate limiting, tracing, and metrics
func (s *Server) instrument(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.metrics.requestCounter.WithLabelValues(endpoint, "throttled").Inc()
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx, span := otel.Tracer().Start(r.Context(), "api."+endpoint)
		defer span.End()

		start := time.Now()
		handler(w, r.WithContext(ctx))
		s.metrics.requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		s.metrics.requestCounter.WithLabelValues(endpoint, "handled").Inc()
	}
}

// writeJSON writes the success envelope, signing it first when report
// signing is enabled.
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	var payload any = apiResponse{OK: true, Data: data}
	if s.signer != nil {
		signed, err := s.signer.SignReport(payload)
		if err != nil {
			logrus.WithError(err).Warn("Report signing failed, sending unsigned")
		} else {
			payload = signed
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{OK: false, Error: message})
}

func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	s.metrics.scanErrors.Inc()
	otel.RecordError(r.Context(), err)
	logrus.WithError(err).WithField("path", r.URL.Path).Warn("Request failed")
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

// contextFromQuery builds the scan context from common query params:
// validator, rpc, programs (comma separated).
func (s *Server) contextFromQuery(r *http.Request) (scan.Context, error) {
	q := r.URL.Query()
	var programNames []string
	if raw := q.Get("programs"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				programNames = append(programNames, trimmed)
			}
		}
	}
	return s.service.ResolveContext(q.Get("validator"), q.Get("rpc"), programNames, nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"status":  "operational",
		"uptime":  time.Since(startTime).String(),
		"version": version,
		"configuration": map[string]any{
			"programs":     s.cfg.Programs.Enabled,
			"sign_reports": s.cfg.Server.SignReports,
			"rate_limit":   s.cfg.Server.RateLimitPerSec,
		},
	}
	if s.signer != nil {
		status["signing_public_key"] = s.signer.PublicKey()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// programInfo describes one supported program for API consumers
type programInfo struct {
	ID          types.ProgramID `json:"id"`
	DisplayName string          `json:"display_name"`
}

func (s *Server) handlePrograms(w http.ResponseWriter, _ *http.Request) {
	infos := make([]programInfo, 0, len(types.AllPrograms()))
	for _, id := range types.AllPrograms() {
		infos = append(infos, programInfo{ID: id, DisplayName: id.DisplayName()})
	}
	s.writeJSON(w, infos)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	persist := r.URL.Query().Get("persist") != "false"

	report, err := s.service.Status(r.Context(), sc, persist)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	eligible := 0
	for i := range report.Results {
		if report.Results[i].Eligible {
			eligible++
		}
	}
	s.metrics.eligiblePrograms.Set(float64(eligible))

	s.writeJSON(w, report)
}

// handleGaps is a scan variant that never persists, matching the CLI's
// gaps view; consumers filter to the failed criteria client side.
func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.service.Status(r.Context(), sc, false)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, report)
}

func (s *Server) handleArbitrage(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opportunities, err := s.service.Arbitrage(r.Context(), sc)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]any{"opportunities": opportunities})
}

// whatIfRequest is the POST body for hypothetical evaluations
type whatIfRequest struct {
	Validator string   `json:"validator,omitempty"`
	RPCURL    string   `json:"rpc_url,omitempty"`
	Programs  []string `json:"programs,omitempty"`
	Changes   []struct {
		Metric string  `json:"metric"`
		To     float64 `json:"to"`
	} `json:"changes"`
}

func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var request whatIfRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(request.Changes) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one metric change is required")
		return
	}

	targets := make([]optimize.MetricTarget, 0, len(request.Changes))
	for _, change := range request.Changes {
		key, err := types.ParseMetricKey(change.Metric)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		targets = append(targets, optimize.MetricTarget{Metric: key, To: change.To})
	}

	sc, err := s.service.ResolveContext(request.Validator, request.RPCURL, request.Programs, nil)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.WhatIf(r.Context(), sc, targets)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleVulnerabilities(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	var program types.ProgramID
	if raw := q.Get("program"); raw != "" {
		program, err = types.ParseProgramID(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	margin := 0.0
	if raw := q.Get("margin"); raw != "" {
		margin, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid margin value")
			return
		}
	}

	vulnerable, err := s.service.Vulnerable(r.Context(), sc, program, margin)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]any{"vulnerable_validators": vulnerable})
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	drifts, err := s.service.Drift(r.Context(), sc)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]any{"drifts": drifts})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	var program types.ProgramID
	if raw := q.Get("program"); raw != "" {
		program, err = types.ParseProgramID(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit value")
			return
		}
	}

	summary, records, err := s.service.History(r.Context(), sc, program, limit)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]any{"summary": summary, "records": records})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	top := 5
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, err = strconv.Atoi(raw)
		if err != nil || top < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid top value")
			return
		}
	}

	recommendations, err := s.service.Optimize(r.Context(), sc, top)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]any{"recommendations": recommendations})
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	conflicts, err := s.service.Conflicts(r.Context(), sc)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]any{"conflicts": conflicts})
}

func (s *Server) handleThreats(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	assessment, err := s.service.Threats(r.Context(), sc)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, assessment)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opportunities, err := s.service.Opportunities(r.Context(), sc)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]any{"opportunities": opportunities})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw := r.URL.Query().Get("pool")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "pool query parameter is required")
		return
	}
	pool, err := types.ParseProgramID(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.service.Queue(r.Context(), sc, pool)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, report)
}

func (s *Server) handleCohorts(w http.ResponseWriter, r *http.Request) {
	sc, err := s.contextFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	epochs := 0
	if raw := r.URL.Query().Get("epochs"); raw != "" {
		epochs, err = strconv.Atoi(raw)
		if err != nil || epochs < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid epochs value")
			return
		}
	}

	report, err := s.service.Cohorts(r.Context(), sc, epochs)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.writeJSON(w, report)
}
