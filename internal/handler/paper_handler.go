package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evalhub/exam-eval-api/internal/models"
	"github.com/evalhub/exam-eval-api/internal/service"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
	"github.com/evalhub/exam-eval-api/pkg/response"
)

// PaperHandler wires HTTP endpoints to the paper service.
type PaperHandler struct {
	service *service.PaperService
}

// NewPaperHandler creates a new handler.
func NewPaperHandler(svc *service.PaperService) *PaperHandler {
	return &PaperHandler{service: svc}
}

// Upload godoc
// @Summary Upload paper
// @Description Submit question and answer documents for a student, queueing the grading pipeline
// @Tags Papers
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param rollNo formData string true "Student roll number"
// @Param title formData string true "Paper title"
// @Param subject formData string true "Subject"
// @Param examDate formData string true "Exam date (YYYY-MM-DD)"
// @Param maxMarks formData number true "Maximum marks"
// @Param rubric formData string false "Grading rubric"
// @Param questionFile formData file true "Question document"
// @Param answerFile formData file true "Answer document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers [post]
func (h *PaperHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := models.UploadPaperRequest{
		RollNo:  c.PostForm("rollNo"),
		Title:   c.PostForm("title"),
		Subject: c.PostForm("subject"),
		Rubric:  c.PostForm("rubric"),
	}
	if raw := c.PostForm("maxMarks"); raw != "" {
		marks, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "maxMarks must be a number"))
			return
		}
		req.MaxMarks = marks
	}
	if raw := c.PostForm("examDate"); raw != "" {
		examDate, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examDate must be YYYY-MM-DD"))
			return
		}
		req.ExamDate = examDate
	}

	question, closeQuestion, err := formFileUpload(c, "questionFile")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeQuestion()

	answer, closeAnswer, err := formFileUpload(c, "answerFile")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeAnswer()

	paper, err := h.service.Upload(c.Request.Context(), req, question, answer, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, paper)
}

// List godoc
// @Summary List papers
// @Description List papers scoped to the caller's role
// @Tags Papers
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param subject query string false "Filter by subject"
// @Param rollNo query string false "Filter by roll number"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /papers [get]
func (h *PaperHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PaperFilter{
		Status:   c.Query("status"),
		Subject:  c.Query("subject"),
		RollNo:   c.Query("rollNo"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}

	papers, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, papers, pagination)
}

// Get godoc
// @Summary Get paper
// @Description Fetch one paper; students may only read their own
// @Tags Papers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Paper ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [get]
func (h *PaperHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	paper, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, paper, nil)
}

// UpdateStatus godoc
// @Summary Update paper status
// @Description Advance a paper through the workflow, optionally attaching a review or final grade
// @Tags Papers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Paper ID"
// @Param payload body models.UpdatePaperStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /papers/{id}/status [patch]
func (h *PaperHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdatePaperStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	paper, err := h.service.UpdateStatus(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, paper, nil)
}

// Download godoc
// @Summary Download paper document
// @Description Stream the stored answer document under its original name
// @Tags Papers
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Paper ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /papers/{id}/download [get]
func (h *PaperHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, name, err := h.service.Download(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.FileAttachment(file.Name(), name)
}

// Results godoc
// @Summary Released results
// @Description List released papers for a roll number. Public: printed roll numbers are the lookup key.
// @Tags Papers
// @Produce json
// @Param rollNo path string true "Student roll number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/results/{rollNo} [get]
func (h *PaperHandler) Results(c *gin.Context) {
	results, err := h.service.Results(c.Request.Context(), c.Param("rollNo"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, results, nil)
}

func formFileUpload(c *gin.Context, field string) (service.FileUpload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.FileUpload{}, nil, appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	file, err := header.Open()
	if err != nil {
		return service.FileUpload{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read "+field)
	}
	return service.FileUpload{Filename: header.Filename, Reader: file}, func() { closeMultipart(file) }, nil
}

func closeMultipart(f multipart.File) {
	_ = f.Close()
}

func queryInt(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
