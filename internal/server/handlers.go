package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"oracle-audit-analyzer/internal/analytics"
	"oracle-audit-analyzer/internal/answer"
	"oracle-audit-analyzer/internal/apperror"
	"oracle-audit-analyzer/internal/classifier"
	"oracle-audit-analyzer/internal/models"
	"oracle-audit-analyzer/internal/service"
)

const healthCheckTimeout = 2 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

type healthResponse struct {
	Status         string `json:"status"`
	GeneratorReady bool   `json:"generator_ready"` // false unless a health check passed
	LogsLoaded     int    `json:"logs_loaded"`
	Version        string `json:"version"`
}

type modelInfoResponse struct {
	Success bool `json:"success"`
	ModelInfo
	Features []string `json:"features"`
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
	LogID    string `json:"log_id" validate:"max=256"`
}

type askResponse struct {
	Success bool `json:"success"`
	answer.Result
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	service.IngestResult
}

type analyzeRequest struct {
	LogContent string `json:"log_content"`
}

type patternResponse struct {
	Success bool `json:"success"`
	service.PatternResult
}

type analysisResponse struct {
	Success  bool                  `json:"success"`
	LogID    string                `json:"log_id"`
	Summary  string                `json:"summary"`
	Analysis models.AnalysisReport `json:"analysis"`
}

type logsResponse struct {
	Success bool               `json:"success"`
	Logs    []models.LogStatus `json:"logs"`
}

type sampleQuestionsResponse struct {
	Success    bool                  `json:"success"`
	Questions  []string              `json:"questions"`
	Categories []classifier.Category `json:"categories"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// handleHealth handles GET /
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		LogsLoaded: len(s.svc.ListLogs()),
		Version:    Version,
	}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("generator health check failed", zap.Error(err))
			resp.Status = "degraded"
		} else {
			resp.GeneratorReady = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleModelInfo handles GET /api/model-info
func (s *Server) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modelInfoResponse{
		Success:   true,
		ModelInfo: s.modelInfo,
		Features: []string{
			"Oracle audit log parsing",
			"Question classification",
			"Anomaly detection",
			"Semantic search over audit events",
			"Answer generation",
		},
	})
}

// handleUploadLogs handles POST /api/upload-logs
func (s *Server) handleUploadLogs(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.writeBodyError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `multipart field "file" is required`})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	if !utf8.Valid(data) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "log file must be UTF-8 text"})
		return
	}

	result, err := s.svc.IngestLog(r.Context(), "", header.Filename, string(data))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:      true,
		Message:      fmt.Sprintf("processed %d events from %s", result.EventCount, header.Filename),
		IngestResult: result,
	})
}

// handleAskLLM handles POST /api/ask-llm
func (s *Server) handleAskLLM(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBodyError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	result := s.svc.AnswerQuestion(r.Context(), req.Question, req.LogID)

	status := http.StatusOK
	if result.Failed() {
		status = statusFor(result.ErrorCode)
	}
	writeJSON(w, status, askResponse{Success: !result.Failed(), Result: result})
}

// handleAnalyzePatterns handles POST /api/analyze-patterns. The content is
// the raw request body, or the log_content field of a JSON body.
func (s *Server) handleAnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}

	content := string(data)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req analyzeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeBodyError(w, err)
			return
		}
		content = req.LogContent
	}

	writeJSON(w, http.StatusOK, patternResponse{Success: true, PatternResult: s.svc.AnalyzeContent(content)})
}

// handleSampleQuestions handles GET /api/sample-questions
func (s *Server) handleSampleQuestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sampleQuestionsResponse{
		Success:    true,
		Questions:  classifier.SampleQuestions(),
		Categories: classifier.Categories(),
	})
}

// handleListLogs handles GET /api/logs
func (s *Server) handleListLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, logsResponse{Success: true, Logs: s.svc.ListLogs()})
}

// handleGetLog handles GET /api/logs/{id}
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	entry, err := s.svc.GetLog(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleGetAnalysis handles GET /api/logs/{id}/analysis
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.svc.GetAnalysis(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analysisResponse{
		Success:  true,
		LogID:    id,
		Summary:  analytics.Summary(report),
		Analysis: report,
	})
}

// handleClearLogs handles DELETE /api/logs
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "all logs removed"})
}

// statusFor maps an application error code to an HTTP status
func statusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeEmptyInput:
		return http.StatusUnprocessableEntity
	case apperror.CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error. Details of unclassified errors are
// logged, not returned.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperror.CodeOf(err)
	status := statusFor(code)

	msg := err.Error()
	if code == "" {
		s.logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: string(code)})
}

// writeBodyError reports a request body that could not be read or decoded
func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit),
		})
		return
	}
	s.logger.Debug("invalid request body", zap.Error(err))
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
}

// validationError classifies a validator failure: missing fields are empty
// input, any other rule is an invalid request
func validationError(err error) error {
	msg := formatValidationError(err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() != "required" {
				return apperror.InvalidRequest(msg)
			}
		}
		return apperror.EmptyInput(msg)
	}
	return apperror.InvalidRequest(msg)
}

// formatValidationError renders validator errors as "field: rule" pairs
func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs[i] = fe.Field() + " is required"
		case "max":
			msgs[i] = fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param())
		default:
			msgs[i] = fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
