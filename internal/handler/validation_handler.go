package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/service"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/export"
	"github.com/noah-isme/campus-idv-api/pkg/response"
)

// ValidationHandler wires HTTP endpoints to the validation-request service.
type ValidationHandler struct {
	service *service.ValidationService
	metrics *service.MetricsService
}

// NewValidationHandler creates a new handler.
func NewValidationHandler(svc *service.ValidationService, metrics *service.MetricsService) *ValidationHandler {
	return &ValidationHandler{service: svc, metrics: metrics}
}

// Submit godoc
// @Summary Submit a validation request
// @Description File a new ID validation request for the authenticated student
// @Tags Validation
// @Accept json
// @Produce json
// @Param payload body service.SubmitValidationRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /validation/requests [post]
func (h *ValidationHandler) Submit(c *gin.Context) {
	var req service.SubmitValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	res, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res, nil)
}

// Status godoc
// @Summary Get own request status
// @Description Return the authenticated student's validation request
// @Tags Validation
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /validation/requests/me [get]
func (h *ValidationHandler) Status(c *gin.Context) {
	res, err := h.service.Status(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// List godoc
// @Summary List validation requests
// @Description Paginated review queue, filterable by status and search term
// @Tags Validation
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Match student name or number"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /validation/requests [get]
func (h *ValidationHandler) List(c *gin.Context) {
	filter := models.ValidationRequestFilter{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" {
		status := models.ValidationStatus(raw)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export the review table
// @Description Download validation requests as CSV or PDF
// @Tags Validation
// @Produce octet-stream
// @Param status query string false "Filter by status"
// @Param search query string false "Match student name or number"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /validation/requests/export [get]
func (h *ValidationHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	filter := models.ValidationRequestFilter{Search: c.Query("search")}
	if raw := c.Query("status"); raw != "" {
		status := models.ValidationStatus(raw)
		filter.Status = &status
	}

	res, err := h.service.ExportRoster(c.Request.Context(), claimsFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Data(http.StatusOK, res.ContentType, res.Content)
}

// Decide godoc
// @Summary Decide on a pending request
// @Description Accept (issuing the QR credential) or reject with remarks
// @Tags Validation
// @Accept json
// @Produce json
// @Param studentNumber path string true "Student number"
// @Param payload body service.DecideRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /validation/requests/{studentNumber}/decision [post]
func (h *ValidationHandler) Decide(c *gin.Context) {
	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	res, err := h.service.Decide(c.Request.Context(), claimsFromContext(c), c.Param("studentNumber"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Status == models.ValidationAccepted {
		h.metrics.RecordQRIssued("accept")
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Resend godoc
// @Summary Resend a QR credential
// @Description Reissue the gate pass for an accepted request, replacing any live QR
// @Tags Validation
// @Produce json
// @Param studentNumber path string true "Student number"
// @Param expiration_days query int false "Credential lifetime in days (1-30)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /validation/requests/{studentNumber}/resend [post]
func (h *ValidationHandler) Resend(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("expiration_days"))
	res, err := h.service.ResendQR(c.Request.Context(), claimsFromContext(c), c.Param("studentNumber"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordQRIssued("resend")
	response.JSON(c, http.StatusOK, res, nil)
}
