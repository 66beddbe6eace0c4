package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evalhub/exam-eval-api/internal/models"
	"github.com/evalhub/exam-eval-api/internal/service"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
	"github.com/evalhub/exam-eval-api/pkg/response"
)

// SpocHandler wires HTTP endpoints to the SPOC service.
type SpocHandler struct {
	service *service.SpocService
}

// NewSpocHandler creates a new handler.
func NewSpocHandler(svc *service.SpocService) *SpocHandler {
	return &SpocHandler{service: svc}
}

// Create godoc
// @Summary Create SPOC profile
// @Description Promote a spoc-role user into a SPOC profile
// @Tags SPOCs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateSpocRequest true "SPOC payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /spocs [post]
func (h *SpocHandler) Create(c *gin.Context) {
	var req models.CreateSpocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid spoc payload"))
		return
	}

	spoc, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, spoc)
}

// List godoc
// @Summary List SPOC profiles
// @Tags SPOCs
// @Produce json
// @Security BearerAuth
// @Param department query string false "Filter by department"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /spocs [get]
func (h *SpocHandler) List(c *gin.Context) {
	filter := models.SpocFilter{
		Department: c.Query("department"),
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "page_size"),
	}

	spocs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, spocs, pagination)
}

// Get godoc
// @Summary Get SPOC profile
// @Tags SPOCs
// @Produce json
// @Security BearerAuth
// @Param id path string true "SPOC ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /spocs/{id} [get]
func (h *SpocHandler) Get(c *gin.Context) {
	spoc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, spoc, nil)
}

// Update godoc
// @Summary Update SPOC profile
// @Tags SPOCs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "SPOC ID"
// @Param payload body models.UpdateSpocRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /spocs/{id} [patch]
func (h *SpocHandler) Update(c *gin.Context) {
	var req models.UpdateSpocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid spoc payload"))
		return
	}

	spoc, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, spoc, nil)
}

// AddStudent godoc
// @Summary Assign student to SPOC
// @Tags SPOCs
// @Produce json
// @Security BearerAuth
// @Param id path string true "SPOC ID"
// @Param studentId path string true "Student user ID"
// @Success 204 "assigned"
// @Failure 404 {object} response.Envelope
// @Router /spocs/{id}/students/{studentId} [put]
func (h *SpocHandler) AddStudent(c *gin.Context) {
	if err := h.service.AddStudent(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveStudent godoc
// @Summary Unassign student from SPOC
// @Tags SPOCs
// @Produce json
// @Security BearerAuth
// @Param id path string true "SPOC ID"
// @Param studentId path string true "Student user ID"
// @Success 204 "unassigned"
// @Router /spocs/{id}/students/{studentId} [delete]
func (h *SpocHandler) RemoveStudent(c *gin.Context) {
	if err := h.service.RemoveStudent(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Students godoc
// @Summary List managed students
// @Tags SPOCs
// @Produce json
// @Security BearerAuth
// @Param id path string true "SPOC ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /spocs/{id}/students [get]
func (h *SpocHandler) Students(c *gin.Context) {
	students, pagination, err := h.service.Students(c.Request.Context(), c.Param("id"), queryInt(c, "page"), queryInt(c, "page_size"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, pagination)
}

// Report godoc
// @Summary SPOC evaluation report
// @Description Aggregate the managed students' papers; format=csv or format=pdf downloads an export
// @Tags SPOCs
// @Produce json
// @Security BearerAuth
// @Param id path string true "SPOC ID"
// @Param startDate query string false "Earliest exam date (YYYY-MM-DD)"
// @Param endDate query string false "Latest exam date (YYYY-MM-DD)"
// @Param subject query string false "Filter by subject"
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /spocs/{id}/report [get]
func (h *SpocHandler) Report(c *gin.Context) {
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if format := c.Query("format"); format != "" {
		payload, contentType, filename, err := h.service.ExportReport(c.Request.Context(), c.Param("id"), filter, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, contentType, payload)
		return
	}

	report, err := h.service.Report(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

func reportFilterFromQuery(c *gin.Context) (models.ReportFilter, error) {
	filter := models.ReportFilter{Subject: c.Query("subject")}
	if raw := c.Query("startDate"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD")
		}
		filter.StartDate = &t
	}
	if raw := c.Query("endDate"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD")
		}
		filter.EndDate = &t
	}
	return filter, nil
}
