package middleware

import (
	"strings"

	"ragviet-backend/services"
	"ragviet-backend/utils"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the HttpOnly cookie the frontend receives at
// login.
const SessionCookieName = "ragviet_session"

// ExtractSessionToken resolves the session token from, in order: the
// Authorization header, the session_id query parameter, the session
// cookie. Handlers that accept session_id in a JSON body pass it on
// themselves after binding.
func ExtractSessionToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token := c.Query("session_id"); token != "" {
		return token
	}
	if token, err := c.Cookie(SessionCookieName); err == nil {
		return token
	}
	return ""
}

// RequireAuth resolves the session and puts the user identity into the
// Gin context. Requests without a live session are rejected.
func RequireAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractSessionToken(c)
		session, err := auth.VerifySession(c.Request.Context(), token)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể xác thực phiên đăng nhập", nil)
			c.Abort()
			return
		}
		if session == nil {
			utils.RespondWithUnauthorized(c, "Token không hợp lệ hoặc đã hết hạn")
			c.Abort()
			return
		}

		c.Set("user_id", session.UserID)
		c.Set("username", session.Username)
		c.Set("email", session.Email)
		c.Next()
	}
}

// RequireAdmin allows only accounts whose email is in the configured
// admin list. Must run after RequireAuth.
func RequireAdmin(adminEmails []string) gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, email := range adminEmails {
		email = strings.TrimSpace(strings.ToLower(email))
		if email != "" {
			allowed[email] = true
		}
	}

	return func(c *gin.Context) {
		email, _ := c.Get("email")
		emailStr, _ := email.(string)
		if !allowed[strings.ToLower(emailStr)] {
			utils.RespondWithForbidden(c, "Bạn không có quyền truy cập chức năng này")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user's id, or "" outside an
// authenticated request.
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		if str, ok := id.(string); ok {
			return str
		}
	}
	return ""
}

// GetUsername returns the authenticated user's name.
func GetUsername(c *gin.Context) string {
	if name, exists := c.Get("username"); exists {
		if str, ok := name.(string); ok {
			return str
		}
	}
	return ""
}
