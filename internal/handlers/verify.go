package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	api "github.com/tracksidelive/trackside/pkg/api/trackside"
	"github.com/tracksidelive/trackside/pkg/auth"
	"github.com/tracksidelive/trackside/pkg/logging"
	"github.com/tracksidelive/trackside/pkg/models"
)

// StartPhoneVerification asks Twilio Verify to text a code to the phone
// number on the request.
func StartPhoneVerification(c *gin.Context) {
	if twilioClient == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "SMS verification is not configured"})
		return
	}

	var req models.PhoneVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid phone number"})
		return
	}

	phone := strings.TrimSpace(req.Phone)
	if !strings.HasPrefix(phone, "+") {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Phone number must be in international format"})
		return
	}

	if err := twilioClient.StartVerification(c.Request.Context(), phone); err != nil {
		logger.WithError(err).Error("Failed to start phone verification")
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Could not send verification code"})
		return
	}

	c.JSON(http.StatusOK, api.SuccessResponse{Success: true, Message: "Verification code sent"})
}

// CheckPhoneVerification submits the SMS code. On approval the phone number
// is stored on the account and marked verified.
func CheckPhoneVerification(c *gin.Context) {
	if twilioClient == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "SMS verification is not configured"})
		return
	}

	var req models.PhoneCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid verification request"})
		return
	}

	approved, err := twilioClient.CheckVerification(c.Request.Context(), strings.TrimSpace(req.Phone), strings.TrimSpace(req.Code))
	if err != nil {
		logger.WithError(err).Error("Failed to check phone verification")
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Could not check verification code"})
		return
	}
	if !approved {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Incorrect verification code"})
		return
	}

	userID := c.GetString(auth.CtxUserID)
	if _, err := db.Exec(`UPDATE users SET phone = $1, phone_verified = true, updated_at = NOW() WHERE id = $2`,
		strings.TrimSpace(req.Phone), userID); err != nil {
		logger.WithError(err).Error("Failed to store verified phone")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Verification failed"})
		return
	}

	logger.WithFields(logging.Fields{"user_id": userID}).Info("Phone number verified")
	c.JSON(http.StatusOK, api.SuccessResponse{Success: true, Message: "Phone number verified"})
}
