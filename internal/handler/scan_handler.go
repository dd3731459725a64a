package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// ScanHandler exposes the endpoints the QR scanner station calls: resolving a
// scanned id number to a profile and recording a check-in.
type ScanHandler struct {
	students *service.StudentService
	checkins *service.CheckInService
}

// NewScanHandler constructs ScanHandler.
func NewScanHandler(students *service.StudentService, checkins *service.CheckInService) *ScanHandler {
	return &ScanHandler{students: students, checkins: checkins}
}

// CheckInRequest is the scan payload.
type CheckInRequest struct {
	IDNo string `json:"idno" validate:"required"`
}

// Resolve godoc
// @Summary Resolve scanned id number
// @Tags Scan
// @Produce json
// @Param idno path string true "Student ID number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scan/{idno} [get]
func (h *ScanHandler) Resolve(c *gin.Context) {
	profile, err := h.students.ResolveForScan(c.Request.Context(), c.Param("idno"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// CheckIn godoc
// @Summary Record a check-in for a scanned id number
// @Tags Scan
// @Accept json
// @Produce json
// @Param payload body CheckInRequest true "Scan payload"
// @Success 200 {object} response.Envelope "Student already checked in today"
// @Success 201 {object} response.Envelope "Check-in recorded"
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /checkins [post]
func (h *ScanHandler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.checkins.CheckIn(c.Request.Context(), req.IDNo)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	switch result.Outcome {
	case models.OutcomeRecorded:
		status = http.StatusCreated
	case models.OutcomeNotFound:
		status = http.StatusNotFound
	}
	response.JSON(c, status, result, nil)
}
