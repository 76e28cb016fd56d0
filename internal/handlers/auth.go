package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	api "github.com/tracksidelive/trackside/pkg/api/trackside"
	"github.com/tracksidelive/trackside/pkg/auth"
	"github.com/tracksidelive/trackside/pkg/logging"
	"github.com/tracksidelive/trackside/pkg/models"
)

const verificationTokenTTL = 48 * time.Hour

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Register creates a listener account and emails a verification link.
func Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid registration request"})
		return
	}

	// Honeypot field: a filled value means a bot. Report success and drop it.
	if req.Website != "" {
		logger.WithField("email", req.Email).Warn("Registration honeypot triggered")
		c.JSON(http.StatusCreated, api.SuccessResponse{Success: true, Message: "Check your email to verify your account"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var exists bool
	if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		logger.WithError(err).Error("Failed to check existing account")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Registration failed"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "An account with this email already exists"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.WithError(err).Error("Failed to hash password")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Registration failed"})
		return
	}

	token, err := generateToken()
	if err != nil {
		logger.WithError(err).Error("Failed to generate verification token")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Registration failed"})
		return
	}

	userID := uuid.New().String()
	_, err = db.Exec(`
		INSERT INTO users (id, email, password_hash, phone, verification_token, token_expires_at, role, subscription_status)
		VALUES ($1, $2, $3, $4, $5, $6, 'listener', $7)`,
		userID, email, hash, strings.TrimSpace(req.Phone), token,
		time.Now().Add(verificationTokenTTL), models.SubscriptionNone)
	if err != nil {
		logger.WithError(err).Error("Failed to create account")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Registration failed"})
		return
	}

	if metrics != nil {
		metrics.Registrations.WithLabelValues("created").Inc()
	}

	verifyURL := fmt.Sprintf("%s/api/auth/verify?token=%s", cfg.AppBaseURL, token)
	if emailSender != nil {
		body := fmt.Sprintf(`<p>Welcome to Trackside Live!</p>
<p>Click <a href="%s">here</a> to verify your account. The link is valid for 48 hours.</p>`, verifyURL)
		if err := emailSender.SendMail(c.Request.Context(), email, "Verify your Trackside Live account", body); err != nil {
			// Account exists; the user can request a resend. Don't fail the signup.
			logger.WithError(err).WithField("user_id", userID).Error("Failed to send verification email")
		}
	}

	logger.WithFields(logging.Fields{
		"user_id": userID,
		"email":   email,
	}).Info("Account registered")

	c.JSON(http.StatusCreated, api.SuccessResponse{Success: true, Message: "Check your email to verify your account"})
}

// VerifyEmail consumes the emailed verification token.
func VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Missing verification token"})
		return
	}

	res, err := db.Exec(`
		UPDATE users
		SET is_verified = true, verification_token = NULL, token_expires_at = NULL, updated_at = NOW()
		WHERE verification_token = $1 AND token_expires_at > NOW()`, token)
	if err != nil {
		logger.WithError(err).Error("Failed to verify account")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Verification failed"})
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid or expired verification token"})
		return
	}

	c.JSON(http.StatusOK, api.SuccessResponse{Success: true, Message: "Account verified"})
}

// Login authenticates a listener and issues the session cookie.
func Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid login request"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := db.QueryRow(`
		SELECT id, email, password_hash, is_verified, phone_verified, role, is_active,
		       COALESCE(stripe_customer_id, ''), subscription_status, subscription_ends_at, created_at, updated_at
		FROM users WHERE email = $1`, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsVerified, &user.PhoneVerified,
		&user.Role, &user.IsActive, &user.StripeCustomerID, &user.SubscriptionStatus,
		&user.SubscriptionEndsAt, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		if metrics != nil {
			metrics.Logins.WithLabelValues("failed").Inc()
		}
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid email or password"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to load account")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Login failed"})
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		if metrics != nil {
			metrics.Logins.WithLabelValues("failed").Inc()
		}
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid email or password"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Account is disabled"})
		return
	}
	if !user.IsVerified {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Verify your email before logging in", Code: "unverified"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.Role, cfg.JWTSecret)
	if err != nil {
		logger.WithError(err).Error("Failed to generate session token")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Login failed"})
		return
	}

	if _, err := db.Exec(`UPDATE users SET last_login = NOW() WHERE id = $1`, user.ID); err != nil {
		logger.WithError(err).Warn("Failed to record login time")
	}

	if metrics != nil {
		metrics.Logins.WithLabelValues("success").Inc()
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, token, int(auth.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, api.AuthResponse{
		Token:     token,
		User:      user,
		ExpiresAt: time.Now().Add(auth.SessionTTL),
	})
}

// Logout clears the session cookie.
func Logout(c *gin.Context) {
	c.SetCookie(auth.SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}

// GetSession is the lightweight probe the player polls on screen focus:
// logged-in, subscribed, and day-pass state in one round trip.
func GetSession(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusOK, api.SessionResponse{})
		return
	}

	var status string
	if err := db.QueryRow(`SELECT subscription_status FROM users WHERE id = $1 AND is_active = true`, userID).Scan(&status); err != nil {
		if err != sql.ErrNoRows {
			logger.WithError(err).Error("Failed to load session state")
		}
		c.JSON(http.StatusOK, api.SessionResponse{})
		return
	}

	var hasPass bool
	if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM day_passes WHERE user_id = $1 AND expires_at > NOW())`, userID).Scan(&hasPass); err != nil {
		logger.WithError(err).Error("Failed to check day passes")
	}

	subscribed := status == models.SubscriptionActive || status == models.SubscriptionTrialing
	c.JSON(http.StatusOK, api.SessionResponse{
		LoggedIn:   true,
		Subscribed: subscribed,
		HasDayPass: hasPass,
		UserID:     userID,
	})
}

// GetUserInfo returns the full account record for the session user.
func GetUserInfo(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)

	var user models.User
	err := db.QueryRow(`
		SELECT id, email, COALESCE(phone, ''), is_verified, phone_verified, role, is_active,
		       subscription_status, subscription_ends_at, last_login, created_at, updated_at
		FROM users WHERE id = $1`, userID).Scan(
		&user.ID, &user.Email, &user.Phone, &user.IsVerified, &user.PhoneVerified,
		&user.Role, &user.IsActive, &user.SubscriptionStatus, &user.SubscriptionEndsAt,
		&user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Account not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to load account")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load account"})
		return
	}

	c.JSON(http.StatusOK, api.UserInfoResponse{User: user})
}
