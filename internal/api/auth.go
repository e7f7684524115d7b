package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/logging"
	"github.com/vaultguard/vaultguard/internal/models"
)

const (
	sessionKey      = "vaultguard_session"
	sessionTokenKey = "vaultguard_session_token"
)

// sessionAuth authenticates requests by bearer session token. Only usable
// (verified) sessions pass; unverified ones are told why.
func (s *Server) sessionAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			s.writeError(c, &errors.ErrInvalidCredentials{})
			return
		}

		session, err := s.provider.Resolve(c.Request.Context(), token)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if !session.Usable() {
			s.writeError(c, &errors.ErrEmailNotVerified{Email: session.Email})
			return
		}

		c.Set(sessionKey, session)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// currentSession returns the session stored by sessionAuth.
func currentSession(c *gin.Context) models.Session {
	value, _ := c.Get(sessionKey)
	session, _ := value.(models.Session)
	return session
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleSignUp registers a new account
func (s *Server) handleSignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "email and password are required"})
		return
	}

	account, err := s.provider.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.metrics.RecordAuthAttempt("signup", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordAuthAttempt("signup", "success")
	s.audit.Record(logging.NewAuditEvent(logging.SignUp, "api signup", logging.StatusSuccess).
		WithUserID(account.ID).WithIPAddress(c.ClientIP()))
	c.JSON(http.StatusCreated, gin.H{
		"id":             account.ID,
		"email":          account.Email,
		"email_verified": account.EmailVerified,
	})
}

// handleSignIn authenticates by password and returns a session token
func (s *Server) handleSignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "email and password are required"})
		return
	}

	auth, err := s.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.metrics.RecordAuthAttempt("password", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordAuthAttempt("password", "success")
	c.JSON(http.StatusOK, auth)
}

// handleSignOut invalidates the presented session token
func (s *Server) handleSignOut(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		s.writeError(c, &errors.ErrInvalidCredentials{})
		return
	}

	if err := s.provider.SignOut(c.Request.Context(), token); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

// handleRequestReset mails a password reset token
func (s *Server) handleRequestReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "email", Reason: "must not be empty"})
		return
	}

	if err := s.provider.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reset mail sent if the account exists"})
}

type confirmResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// handleConfirmReset redeems a reset token
func (s *Server) handleConfirmReset(c *gin.Context) {
	var req confirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "token and new_password are required"})
		return
	}

	if err := s.provider.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

// handleVerifyEmail redeems a verification token from the mail link
func (s *Server) handleVerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		s.writeError(c, &errors.ErrValidation{Field: "token", Reason: "must not be empty"})
		return
	}

	if err := s.provider.VerifyEmail(c.Request.Context(), token); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "email verified"})
}

// handleResendVerification mails a fresh verification token
func (s *Server) handleResendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "email", Reason: "must not be empty"})
		return
	}

	if err := s.provider.ResendVerification(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "verification mail sent"})
}

// handleOAuthBegin redirects to the upstream provider
func (s *Server) handleOAuthBegin(c *gin.Context) {
	if s.oauth == nil {
		s.writeError(c, &errors.ErrInvalidConfiguration{Reason: "oauth is not configured"})
		return
	}

	redirect, err := s.oauth.Begin()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

// handleOAuthCallback completes the redirect flow
func (s *Server) handleOAuthCallback(c *gin.Context) {
	if s.oauth == nil {
		s.writeError(c, &errors.ErrInvalidConfiguration{Reason: "oauth is not configured"})
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		s.writeError(c, &errors.ErrValidation{Field: "query", Reason: "state and code are required"})
		return
	}

	auth, err := s.oauth.Complete(c.Request.Context(), state, code)
	if err != nil {
		s.metrics.RecordAuthAttempt("oauth", "error")
		s.writeError(c, err)
		return
	}

	s.metrics.RecordAuthAttempt("oauth", "success")
	c.JSON(http.StatusOK, auth)
}

// handleSession returns the authenticated session
func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c))
}

// handleUpdateProfile applies profile changes to the session's account
func (s *Server) handleUpdateProfile(c *gin.Context) {
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "malformed profile update"})
		return
	}

	token, _ := c.Get(sessionTokenKey)
	session, err := s.provider.UpdateProfile(c.Request.Context(), token.(string), update)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
