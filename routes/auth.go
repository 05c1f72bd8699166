package routes

import (
	"net/http"

	"ragviet-backend/internal/config"
	"ragviet-backend/middleware"
	"ragviet-backend/models"
	"ragviet-backend/services"
	"ragviet-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes wires registration, login/logout, session
// verification and the OTP password-reset flow.
func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, auth *services.AuthService, chat *services.ChatService) {
	group := router.Group("/auth")

	cookieMaxAge := cfg.SessionTTLDays * 24 * 3600

	group.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Vui lòng điền đầy đủ thông tin", gin.H{"error": err.Error()})
			return
		}

		if req.Password != req.ConfirmPassword {
			utils.RespondWithBadRequest(c, "Mật khẩu xác nhận không khớp", nil)
			return
		}

		message, err := auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
	})

	group.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Vui lòng điền đầy đủ thông tin", gin.H{"error": err.Error()})
			return
		}

		token, user, err := auth.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			utils.RespondWithUnauthorized(c, err.Error())
			return
		}

		// Each login opens a fresh conversation so the client lands on
		// an empty chat.
		chatSessionID := ""
		if session, err := chat.CreateChatSession(c.Request.Context(), user.ID.Hex()); err == nil {
			chatSessionID = session.ID.Hex()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookieName, token, cookieMaxAge, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"message":         "Đăng nhập thành công!",
			"session_id":      token,
			"access_token":    token,
			"user":            user,
			"chat_session_id": chatSessionID,
		})
	})

	group.POST("/logout", func(c *gin.Context) {
		token := sessionTokenFromRequest(c)
		if err := auth.Logout(c.Request.Context(), token); err != nil {
			utils.RespondWithInternalError(c, "Không thể đăng xuất", nil)
			return
		}
		c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Đã đăng xuất"})
	})

	group.POST("/verify-session", func(c *gin.Context) {
		token := sessionTokenFromRequest(c)
		session, err := auth.VerifySession(c.Request.Context(), token)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể xác thực phiên đăng nhập", nil)
			return
		}
		if session == nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "valid": false})
			return
		}

		// A verified returning client also lands on a fresh conversation.
		chatSessionID := ""
		if chatSession, err := chat.CreateChatSession(c.Request.Context(), session.UserID); err == nil {
			chatSessionID = chatSession.ID.Hex()
		}
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"valid":           true,
			"user":            session,
			"chat_session_id": chatSessionID,
		})
	})

	group.POST("/forgot-password", func(c *gin.Context) {
		var req models.ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Vui lòng điền đầy đủ thông tin", gin.H{"error": err.Error()})
			return
		}

		message, err := auth.ForgotPassword(c.Request.Context(), req.Email)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
	})

	group.POST("/reset-password", func(c *gin.Context) {
		var req models.ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Vui lòng điền đầy đủ thông tin", gin.H{"error": err.Error()})
			return
		}

		if req.NewPassword != req.ConfirmPassword {
			utils.RespondWithBadRequest(c, "Mật khẩu xác nhận không khớp", nil)
			return
		}

		message, err := auth.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
	})
}

// sessionTokenFromRequest accepts the token from a JSON body as well
// as the header/query/cookie sources the middleware reads.
func sessionTokenFromRequest(c *gin.Context) string {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.SessionID != "" {
		return req.SessionID
	}
	return middleware.ExtractSessionToken(c)
}
