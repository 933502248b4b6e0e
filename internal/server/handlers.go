package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fundpulse/fundpulse/internal/domain"
)

// envelope is the uniform response shape: a status flag, exactly one payload
// field, and the server-side timestamp.
type envelope struct {
	Status    string      `json:"status"`
	Metadata  interface{} `json:"metadata,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Report    interface{} `json:"report,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "fundpulse",
		"version": "1.0.0",
	})
}

// handleFunds lists the funds with stored history.
func (s *Server) handleFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := s.store.ListFunds()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if funds == nil {
		funds = []string{}
	}
	s.writeEnvelope(w, envelope{Status: "success", Data: funds})
}

// handleRiskMetrics computes risk metrics over the stored panel.
func (s *Server) handleRiskMetrics(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.loadPanel(w)
	if !ok {
		return
	}

	result, err := s.analytics.CalculateRiskMetrics(r.Context(), panel)
	if err != nil {
		s.writeAnalyticsError(w, err)
		return
	}
	s.writeEnvelope(w, envelope{Status: "success", Data: result})
}

// handleAnomalies runs anomaly detection over the stored panel.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.loadPanel(w)
	if !ok {
		return
	}

	result, err := s.analytics.DetectAnomalies(r.Context(), panel)
	if err != nil {
		s.writeAnalyticsError(w, err)
		return
	}
	s.writeEnvelope(w, envelope{Status: "success", Data: result})
}

// handleAllocation solves the allocation problem over the stored panel.
func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.loadPanel(w)
	if !ok {
		return
	}

	result, err := s.analytics.OptimizeAllocation(r.Context(), panel)
	if err != nil {
		s.writeAnalyticsError(w, err)
		return
	}
	s.writeEnvelope(w, envelope{Status: "success", Data: result})
}

// handleGenerateReport builds a full report, archives it, and returns it.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.loadPanel(w)
	if !ok {
		return
	}

	report, err := s.analytics.GenerateReport(r.Context(), panel)
	if err != nil {
		s.writeAnalyticsError(w, err)
		return
	}

	if s.archive != nil {
		if err := s.archive.Save(report); err != nil {
			s.log.Error().Err(err).Str("report_id", report.ReportID).Msg("Failed to archive report")
		}
	}

	s.writeEnvelope(w, envelope{Status: "success", Report: report})
}

// handleListReports lists archived report IDs.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeEnvelope(w, envelope{Status: "success", Data: []string{}})
		return
	}

	ids, err := s.archive.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeEnvelope(w, envelope{Status: "success", Data: ids})
}

// handleGetReport loads one archived report.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.NotFound(w, r)
		return
	}

	reportID := chi.URLParam(r, "reportID")
	report, err := s.archive.Load(reportID)
	if err != nil {
		s.writeEnvelopeStatus(w, http.StatusNotFound, envelope{Status: "error", Error: "report not found"})
		return
	}
	s.writeEnvelope(w, envelope{Status: "success", Report: report})
}

// handleRunETL triggers an immediate data refresh.
func (s *Server) handleRunETL(w http.ResponseWriter, r *http.Request) {
	result, err := s.etl.Run(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeEnvelope(w, envelope{Status: "success", Metadata: result})
}

// loadPanel fetches the stored panel, writing the error response itself on
// failure.
func (s *Server) loadPanel(w http.ResponseWriter) (domain.Panel, bool) {
	panel, err := s.store.LoadPanel()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return panel, true
}

// writeAnalyticsError maps analytics errors to HTTP responses. Validation
// failures are client errors; anything else is a server fault.
func (s *Server) writeAnalyticsError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		s.writeEnvelopeStatus(w, http.StatusUnprocessableEntity, envelope{
			Status: "error",
			Error:  verr.Error(),
		})
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) writeEnvelope(w http.ResponseWriter, env envelope) {
	s.writeEnvelopeStatus(w, http.StatusOK, env)
}

func (s *Server) writeEnvelopeStatus(w http.ResponseWriter, status int, env envelope) {
	env.Timestamp = time.Now().UTC()
	s.writeJSON(w, status, env)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Error().Err(err).Msg("Request failed")
	s.writeEnvelopeStatus(w, status, envelope{Status: "error", Error: err.Error()})
}
