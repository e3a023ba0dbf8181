package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/semantic"
	"github.com/ShayCichocki/dagforge/internal/state"
	"github.com/ShayCichocki/dagforge/internal/version"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// validateDAGRequest is the body of POST /validate/dag.
type validateDAGRequest struct {
	DAGCode string          `json:"dag_code"`
	DAGSpec json.RawMessage `json:"dag_spec"`
}

// validateDAGResponse mirrors the semantic service contract.
type validateDAGResponse struct {
	Valid    bool           `json:"valid"`
	Errors   []models.Entry `json:"errors"`
	Warnings []models.Entry `json:"warnings"`
	Details  dagDetails     `json:"details"`
}

type dagDetails struct {
	SyntaxValidation    *models.ValidationResult `json:"syntax_validation"`
	StructureValidation *models.ValidationResult `json:"structure_validation"`
}

// environmentRequest is the body of POST /validate/environment.
type environmentRequest struct {
	DAGSpec     *models.Specification `json:"dag_spec" binding:"required"`
	Environment semantic.Environment  `json:"environment"`
}

// specValidateRequest is the body of POST /v1/specs/validate.
type specValidateRequest struct {
	Spec       *models.Specification `json:"spec" binding:"required"`
	SchemaOnly bool                  `json:"schema_only"`
}

// specRepairRequest is the body of POST /v1/specs/repair.
type specRepairRequest struct {
	Spec          *models.Specification `json:"spec" binding:"required"`
	MaxIterations *int                  `json:"max_iterations"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": ServiceName,
		"version": version.Get(),
	})
}

func (s *Server) handleValidateDAG(c *gin.Context) {
	var req validateDAGRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "No data provided", Details: err.Error()})
		return
	}

	hasSpec := !emptyObject(req.DAGSpec)
	if !hasSpec && req.DAGCode == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Either dag_code or dag_spec must be provided"})
		return
	}
	if !hasSpec {
		c.JSON(http.StatusNotImplemented, errorResponse{Error: "dag_code validation is not supported; send dag_spec"})
		return
	}

	var spec models.Specification
	if err := json.Unmarshal(req.DAGSpec, &spec); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid dag_spec", Details: err.Error()})
		return
	}

	result := s.checker.Check(&spec)
	resp := validateDAGResponse{
		Valid:    result.Valid(),
		Errors:   result.Errors,
		Warnings: result.Warnings,
		Details:  dagDetails{StructureValidation: &result},
	}

	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	s.logger.Info("dag validated",
		"spec_id", spec.ID,
		"valid", resp.Valid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)
	c.JSON(status, resp)
}

func (s *Server) handleValidateEnvironment(c *gin.Context) {
	var req environmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "dag_spec is required", Details: err.Error()})
		return
	}

	result := semantic.CheckEnvironment(req.DAGSpec, req.Environment)
	status := http.StatusOK
	if !result.Valid() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

func (s *Server) handleSpecValidate(c *gin.Context) {
	var req specValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "spec is required", Details: err.Error()})
		return
	}

	if req.SchemaOnly {
		c.JSON(http.StatusOK, s.validator.ValidateAggregate(req.Spec, nil))
		return
	}
	c.JSON(http.StatusOK, s.validator.Validate(c.Request.Context(), req.Spec))
}

func (s *Server) handleSpecRepair(c *gin.Context) {
	if s.driver == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "repair is not configured: no fix proposer available"})
		return
	}

	var req specRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid repair request", Details: err.Error()})
		return
	}
	maxIter := s.maxIterations
	if req.MaxIterations != nil {
		maxIter = *req.MaxIterations
	}

	result, err := s.driver.Repair(c.Request.Context(), req.Spec, maxIter)
	if err != nil {
		if errors.Is(err, repair.ErrInvalidInput) || errors.Is(err, repair.ErrInvalidMaxIterations) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		// Only cancellation before the first validation reaches here.
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	if s.history != nil {
		if err := s.history.SaveRun(state.FromResult(result)); err != nil {
			s.logger.Error("failed to record repair run", "run_id", result.RunID, "error", err)
		}
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "history is disabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := s.history.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if runs == nil {
		runs = []state.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "history is disabled"})
		return
	}

	run, err := s.history.GetRun(c.Param("id"))
	if errors.Is(err, state.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// emptyObject reports whether raw is absent, null or an object without keys.
func emptyObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return len(m) == 0
}
