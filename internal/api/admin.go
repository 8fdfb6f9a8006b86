package api

import (
	"net/http"
	"strconv"

	"business-directory/internal/common/errors"
	"business-directory/internal/moderation"
	"business-directory/internal/store"

	"github.com/gin-gonic/gin"
)

const maxBatchIDs = 100

func adminID(c *gin.Context) string {
	return c.GetString(adminIDKey)
}

func (h *Handler) listSubmissions(c *gin.Context) {
	page, limit, err := pagination(c)
	if err != nil {
		writeError(c, err)
		return
	}
	withDuplicates, _ := strconv.ParseBool(c.Query("withDuplicates"))

	list, err := h.moderation.ListSubmissions(c.Request.Context(), store.SubmissionFilter{
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	}, withDuplicates)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) getSubmission(c *gin.Context) {
	sub, err := h.moderation.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

func (h *Handler) submissionDuplicates(c *gin.Context) {
	res, err := h.duplicates.FindDuplicatesByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type batchRequest struct {
	SubmissionIDs []string `json:"submissionIds"`
}

func (h *Handler) batchDuplicates(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewInvalidInputError("body must be {\"submissionIds\": [...]}"))
		return
	}
	if len(req.SubmissionIDs) == 0 {
		writeError(c, errors.NewInvalidInputError("submissionIds must not be empty"))
		return
	}
	if len(req.SubmissionIDs) > maxBatchIDs {
		writeError(c, errors.NewInvalidInputError("at most "+strconv.Itoa(maxBatchIDs)+" submissionIds per batch"))
		return
	}
	c.JSON(http.StatusOK, h.duplicates.BatchCheckDuplicates(c.Request.Context(), req.SubmissionIDs))
}

func (h *Handler) duplicateStats(c *gin.Context) {
	stats, err := h.stats.GetDuplicateStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) approve(c *gin.Context) {
	var req moderation.ApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, errors.NewInvalidInputError("body must be {\"verified\"?, \"mergeIntoBusinessId\"?}"))
			return
		}
	}

	res, err := h.moderation.Approve(c.Request.Context(), c.Param("id"), adminID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidationFailedError(map[string]string{"reason": "Rejection reason is required"}))
		return
	}

	sub, err := h.moderation.Reject(c.Request.Context(), c.Param("id"), adminID(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

func (h *Handler) auditTrail(c *gin.Context) {
	entries, err := h.moderation.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
