package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-idv-api/internal/service"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/response"
)

// ScanHandler wires the gate-scanner endpoints to the scan service.
type ScanHandler struct {
	service *service.ScanService
	metrics *service.MetricsService
}

// NewScanHandler creates a new handler.
func NewScanHandler(svc *service.ScanService, metrics *service.MetricsService) *ScanHandler {
	return &ScanHandler{service: svc, metrics: metrics}
}

// Verify godoc
// @Summary Verify a scanned QR code
// @Description Decode the QR payload and return the student snapshot; never consumes the credential
// @Tags Scan
// @Accept json
// @Produce json
// @Param payload body service.VerifyRequest true "Scanned QR data"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /scan/verify [post]
func (h *ScanHandler) Verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verify payload"))
		return
	}

	res, err := h.service.Verify(c.Request.Context(), c.ClientIP(), req)
	if err != nil {
		h.metrics.RecordGateScan(scanOutcome(err))
		response.Error(c, err)
		return
	}
	h.metrics.RecordGateScan("verified")
	response.JSON(c, http.StatusOK, res, nil)
}

// Complete godoc
// @Summary Complete a gate scan
// @Description Consume the credential and mark the student validated for the semester
// @Tags Scan
// @Accept json
// @Produce json
// @Param payload body service.CompleteRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /scan/complete [post]
func (h *ScanHandler) Complete(c *gin.Context) {
	var req service.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}

	res, err := h.service.Complete(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		h.metrics.RecordGateScan(scanOutcome(err))
		response.Error(c, err)
		return
	}
	if res.Validated {
		h.metrics.RecordGateScan("completed")
	} else {
		h.metrics.RecordGateScan("incomplete")
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// History godoc
// @Summary Validation history for a student
// @Description Append-only trail of completed gate validations
// @Tags Scan
// @Produce json
// @Param studentNumber path string true "Student number"
// @Success 200 {object} response.Envelope
// @Router /scan/history/{studentNumber} [get]
func (h *ScanHandler) History(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context(), claimsFromContext(c), c.Param("studentNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func scanOutcome(err error) string {
	switch {
	case appErrors.Is(err, appErrors.ErrExpired):
		return "expired"
	case appErrors.Is(err, appErrors.ErrAlreadyUsed):
		return "already_used"
	case appErrors.Is(err, appErrors.ErrNotFound):
		return "not_found"
	case appErrors.Is(err, appErrors.ErrRateLimited):
		return "rate_limited"
	default:
		return "rejected"
	}
}
