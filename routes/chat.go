package routes

import (
	"net/http"

	"ragviet-backend/middleware"
	"ragviet-backend/models"
	"ragviet-backend/services"
	"ragviet-backend/utils"

	"github.com/gin-gonic/gin"
)

const sessionListLimit = 50

// SetupChatRoutes wires the question endpoint and conversation
// management. Everything here requires a live session.
func SetupChatRoutes(router *gin.Engine, auth *services.AuthService, answer *services.AnswerService, chat *services.ChatService) {
	group := router.Group("/chat")
	group.Use(middleware.RequireAuth(auth))

	group.POST("/send", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Vui lòng nhập câu hỏi", gin.H{"error": err.Error()})
			return
		}

		userID := middleware.GetUserID(c)
		response, sessionID, err := answer.Answer(c.Request.Context(), userID, req.ChatSessionID, req.Message, req.SelectedFile)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể xử lý câu hỏi", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"response":        response,
			"chat_session_id": sessionID,
		})
	})

	group.GET("/sessions", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		sessions, err := chat.GetChatSessions(c.Request.Context(), userID, sessionListLimit)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể tải danh sách hội thoại", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
	})

	group.POST("/sessions/create", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		session, err := chat.CreateChatSession(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể tạo hội thoại mới", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"chat_session_id": session.ID.Hex(),
			"session":         session,
		})
	})

	group.GET("/history/:session_id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		sessionID := c.Param("session_id")

		session, err := chat.GetChatSession(c.Request.Context(), userID, sessionID)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể tải lịch sử hội thoại", nil)
			return
		}
		if session == nil {
			utils.RespondWithNotFound(c, "Không tìm thấy hội thoại")
			return
		}

		turns, err := chat.GetSessionMessages(c.Request.Context(), userID, sessionID)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể tải lịch sử hội thoại", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"session":  session,
			"messages": turns,
		})
	})
}
