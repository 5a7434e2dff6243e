package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-idv-api/internal/service"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/response"
)

// SettingsHandler wires the campus settings endpoints to the settings service.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler creates a new handler.
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// PeriodStatus godoc
// @Summary Public validation-period status
// @Description Whether validation is currently open; no authentication required
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /validation/period/status [get]
func (h *SettingsHandler) PeriodStatus(c *gin.Context) {
	res, err := h.service.PeriodStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Period godoc
// @Summary Get the configured validation period
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/period [get]
func (h *SettingsHandler) Period(c *gin.Context) {
	res, err := h.service.Period(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// SetPeriod godoc
// @Summary Set the validation period
// @Description Replace the submission window
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body service.SetPeriodRequest true "Period bounds"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /settings/period [put]
func (h *SettingsHandler) SetPeriod(c *gin.Context) {
	var req service.SetPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid period payload"))
		return
	}
	if err := h.service.SetPeriod(c.Request.Context(), claimsFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CurrentSemester godoc
// @Summary Get the current semester
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /settings/semester [get]
func (h *SettingsHandler) CurrentSemester(c *gin.Context) {
	res, err := h.service.CurrentSemester(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// StartSemester godoc
// @Summary Start a new semester
// @Description Open a new term, close the outgoing one in the log, and reset every student's validated flag
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body service.StartSemesterRequest true "Semester payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /settings/semester [post]
func (h *SettingsHandler) StartSemester(c *gin.Context) {
	var req service.StartSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid semester payload"))
		return
	}
	res, err := h.service.StartSemester(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res, nil)
}
