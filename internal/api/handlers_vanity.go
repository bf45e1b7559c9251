package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vanity-grinder/internal/service"
	"github.com/vanity-grinder/internal/types"
)

// handleSubmitJob handles POST /api/v1/vanity/jobs - submit a vanity search
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req service.VanityRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		respondServiceError(w, err)
		return
	}

	requester := req.RequestedBy
	if requester == "" {
		requester = r.Header.Get("X-Requested-By")
	}
	if requester == "" {
		requester = clientIP(r)
	}

	if s.submitLimiter != nil {
		allowed, retryAfter, err := s.submitLimiter.Allow(r.Context(), requester)
		if err != nil {
			// The budget tracker is advisory; submissions go through when
			// it is unreachable
			s.logger.WithError(err).Warnf("submission budget check failed for %s", requester)
		} else if !allowed {
			seconds := int(retryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			respondError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded,
				"Submission budget exhausted. Please try again later.", map[string]interface{}{
					"requester":         requester,
					"retryAfterSeconds": seconds,
				})
			return
		}
	}

	job, err := s.vanityService.RequestVanityAddress(r.Context(), &req, clientIP(r))
	if err != nil {
		s.logger.WithError(err).Debugf("submission rejected")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, job)
}

// handleGetJob handles GET /api/v1/vanity/jobs/{jobId} - poll a job
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := s.vanityService.GetJob(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleListJobs handles GET /api/v1/vanity/jobs?status=&limit= - admin listing
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var status *types.JobStatus
	if statusStr := query.Get("status"); statusStr != "" {
		st := types.JobStatus(statusStr)
		status = &st
	}

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	jobs, err := s.vanityService.ListJobs(r.Context(), status, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleCancelJob handles POST /api/v1/vanity/jobs/{jobId}/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := s.vanityService.CancelJob(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleResubmitJob handles POST /api/v1/vanity/jobs/{jobId}/resubmit -
// re-dispatch an interrupted job
func (s *Server) handleResubmitJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := s.vanityService.ResubmitJob(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleStatus handles GET /api/v1/vanity/status - generator capacity and queue
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.vanityService.Status(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// handleEstimate handles GET /api/v1/vanity/estimate?pattern=&caseSensitive=&attemptsPerSec=
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	pattern := query.Get("pattern")
	if pattern == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "pattern parameter required", nil)
		return
	}

	caseSensitive := query.Get("caseSensitive") == "true"

	var attemptsPerSec float64
	if rateStr := query.Get("attemptsPerSec"); rateStr != "" {
		parsed, err := strconv.ParseFloat(rateStr, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "attemptsPerSec must be a non-negative number", nil)
			return
		}
		attemptsPerSec = parsed
	}

	estimate, err := s.vanityService.Estimate(pattern, caseSensitive, attemptsPerSec)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, estimate)
}

// handleJobThroughput handles GET /api/v1/vanity/jobs/{jobId}/throughput?limit=
func (s *Server) handleJobThroughput(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	samples, err := s.vanityService.JobThroughput(r.Context(), jobID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobId":   jobID,
		"samples": samples,
		"count":   len(samples),
	})
}
