package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// CredentialRequest carries an upstream credential obtained by the OAuth handshake.
type CredentialRequest struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// SetCredentialHandler stores an upstream credential in the session.
func (api *API) SetCredentialHandler(c *gin.Context) {
	sess := currentSession(c)

	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if result := ValidateCredentialRequest(&req); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	sess.Credential = &oauth2.Token{
		AccessToken:  req.AccessToken,
		TokenType:    req.TokenType,
		RefreshToken: req.RefreshToken,
		Expiry:       req.Expiry,
	}
	sess.Status = "Logged In and Ready"
	sess.UpdatedAt = time.Now()

	c.JSON(http.StatusOK, gin.H{
		"message":    "Credential stored",
		"session_id": sess.ID,
		"status":     sess.Status,
	})
}

// LogoutHandler drops the session's upstream credential.
func (api *API) LogoutHandler(c *gin.Context) {
	sess := currentSession(c)
	sess.ClearCredential()
	sess.Status = ""
	sess.UpdatedAt = time.Now()

	c.JSON(http.StatusOK, gin.H{"message": "Logged out", "session_id": sess.ID})
}

// StatusHandler returns the session's state, refreshed from its tracking record.
func (api *API) StatusHandler(c *gin.Context) {
	sess := currentSession(c)

	view, err := api.finder.Status(c.Request.Context(), sess)
	if err != nil {
		SendServiceError(c, "status", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
