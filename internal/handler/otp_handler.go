package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evalhub/exam-eval-api/internal/models"
	"github.com/evalhub/exam-eval-api/internal/service"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
	"github.com/evalhub/exam-eval-api/pkg/response"
)

// OTPHandler wires HTTP endpoints to the OTP service.
type OTPHandler struct {
	service *service.OTPService
}

// NewOTPHandler creates a new handler.
func NewOTPHandler(svc *service.OTPService) *OTPHandler {
	return &OTPHandler{service: svc}
}

// Send godoc
// @Summary Send OTP
// @Description Mail a 6-digit verification code to the address
// @Tags OTP
// @Accept json
// @Produce json
// @Param payload body models.SendOTPRequest true "OTP request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /auth/otp/send [post]
func (h *OTPHandler) Send(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid OTP payload"))
		return
	}

	if err := h.service.Issue(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "OTP sent"}, nil)
}

// Verify godoc
// @Summary Verify OTP
// @Description Check a code; a match records a verification marker for the address
// @Tags OTP
// @Accept json
// @Produce json
// @Param payload body models.VerifyOTPRequest true "Verification payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/otp/verify [post]
func (h *OTPHandler) Verify(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	if err := h.service.Verify(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "OTP verified"}, nil)
}

// ResetPassword godoc
// @Summary Reset password
// @Description Complete the OTP-gated password reset
// @Tags OTP
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Reset payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/password/reset [post]
func (h *OTPHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "password reset"}, nil)
}
