package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"opsflow/pkg/logging"

	"github.com/gin-gonic/gin"
)

const defaultRunsLimit = 20

func (s *Server) listWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.List())
}

func (s *Server) getWorkflow(c *gin.Context) {
	wf, err := s.service.Get(c.Param("workflowID"))
	if err != nil {
		errorJSON(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (s *Server) runWorkflow(c *gin.Context) {
	workflowID := c.Param("workflowID")

	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid run request: %w", err))
			return
		}
	}
	if req.Variables == nil {
		req.Variables = map[string]interface{}{}
	}

	if req.Async {
		// The run outlives the request.
		ctx := context.WithoutCancel(c.Request.Context())
		run, err := s.service.RunAsync(ctx, workflowID, req.Variables)
		if err != nil {
			errorJSON(c, statusFor(err), err)
			return
		}
		go func() {
			result := <-run.Result
			logging.Debug("HTTPServer", "Async run %s of %s finished: %s", result.RunID, workflowID, result.Summary())
		}()
		c.Header("Location", "/runs/"+run.RunID)
		c.JSON(http.StatusAccepted, RunAccepted{RunID: run.RunID, WorkflowID: workflowID, Status: "accepted"})
		return
	}

	result, err := s.service.Run(c.Request.Context(), workflowID, req.Variables)
	if err != nil {
		errorJSON(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listRuns(c *gin.Context) {
	workflowID := c.Param("workflowID")
	if _, err := s.service.Get(workflowID); err != nil {
		errorJSON(c, statusFor(err), err)
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	records, err := s.service.Runs(c.Request.Context(), workflowID, limit)
	if err != nil {
		errorJSON(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) getRun(c *gin.Context) {
	rec, err := s.service.GetRun(c.Request.Context(), c.Param("runID"))
	if err != nil {
		errorJSON(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
