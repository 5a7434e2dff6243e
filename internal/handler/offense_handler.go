package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-idv-api/internal/service"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/response"
)

// OffenseHandler wires the disciplinary-record endpoints to the offense service.
type OffenseHandler struct {
	service *service.OffenseService
}

// NewOffenseHandler creates a new handler.
func NewOffenseHandler(svc *service.OffenseService) *OffenseHandler {
	return &OffenseHandler{service: svc}
}

// Catalog godoc
// @Summary Handbook offense catalog
// @Description Numbered major and minor offenses with per-occurrence sanctions
// @Tags Offenses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /offenses/catalog [get]
func (h *OffenseHandler) Catalog(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Catalog(), nil)
}

// File godoc
// @Summary File an offense
// @Description Record a new active offense against a student
// @Tags Offenses
// @Accept json
// @Produce json
// @Param payload body service.FileOffenseRequest true "Offense payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /offenses [post]
func (h *OffenseHandler) File(c *gin.Context) {
	var req service.FileOffenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid offense payload"))
		return
	}

	res, err := h.service.File(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res, nil)
}

// Resolve godoc
// @Summary Resolve an offense
// @Description Close an active offense with resolution remarks
// @Tags Offenses
// @Accept json
// @Produce json
// @Param id path string true "Offense ID"
// @Param payload body object true "Resolution remarks"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /offenses/{id}/resolve [post]
func (h *OffenseHandler) Resolve(c *gin.Context) {
	var payload struct {
		Remarks string `json:"remarks"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}

	res, err := h.service.Resolve(c.Request.Context(), claimsFromContext(c), c.Param("id"), payload.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Reopen godoc
// @Summary Reopen a resolved offense
// @Description Flip a resolved offense back to active
// @Tags Offenses
// @Produce json
// @Param id path string true "Offense ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /offenses/{id}/reopen [post]
func (h *OffenseHandler) Reopen(c *gin.Context) {
	res, err := h.service.Reopen(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ListByStudent godoc
// @Summary List a student's offenses
// @Description Full disciplinary record; students may only view their own
// @Tags Offenses
// @Produce json
// @Param studentNumber path string true "Student number"
// @Success 200 {object} response.Envelope
// @Router /offenses/student/{studentNumber} [get]
func (h *OffenseHandler) ListByStudent(c *gin.Context) {
	res, err := h.service.ListByStudent(c.Request.Context(), claimsFromContext(c), c.Param("studentNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
