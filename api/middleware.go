package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-dupfinder/internal/session"
)

const (
	// SessionCookie names the cookie carrying the session ID.
	SessionCookie = "dupfinder_session"

	sessionKey = "session"
)

// Identity headers set by the authenticating proxy in front of the service.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserEmail    = "X-User-Email"
	HeaderUserNickname = "X-User-Nickname"
)

// RequestSizeLimitMiddleware limits the size of request bodies to prevent memory exhaustion
func RequestSizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	})
}

// CORSMiddleware adds CORS headers for cross-origin requests
func CORSMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-User-Email, X-User-Nickname")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})
}

// SessionMiddleware resolves the caller's session from its cookie, creating
// one when needed, and holds the session's lock for the rest of the request.
func SessionMiddleware(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookie)
		sess, existed := sessions.Get(id)
		if !existed {
			c.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)
		}

		sess.Lock()
		defer sess.Unlock()

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// IdentityMiddleware copies the caller identity headers into the session.
// Requests without X-User-ID keep the identity already held by the session.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if userID := c.GetHeader(HeaderUserID); userID != "" && sess != nil {
			if sess.User.ID != userID {
				// A different user on this session: drop per-user state.
				sess.RecordID = ""
				sess.Report = ""
				sess.Fetched = false
				sess.IndexingDone = false
			}
			sess.User.ID = userID
			sess.User.Email = c.GetHeader(HeaderUserEmail)
			sess.User.Nickname = c.GetHeader(HeaderUserNickname)
		}
		c.Next()
	}
}

// currentSession returns the session attached by SessionMiddleware.
func currentSession(c *gin.Context) *session.Session {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil
	}
	sess, _ := value.(*session.Session)
	return sess
}
