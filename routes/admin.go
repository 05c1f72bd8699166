package routes

import (
	"fmt"
	"net/http"
	"time"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/vectorstore"
	"ragviet-backend/middleware"
	"ragviet-backend/services"
	"ragviet-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupAdminRoutes wires the operator surface: index stats, any user's
// file list, and the chat-history spreadsheet export.
func SetupAdminRoutes(router *gin.Engine, cfg *config.Config, auth *services.AuthService, chat *services.ChatService, export *services.ExportService, store *vectorstore.Store) {
	group := router.Group("/admin")
	group.Use(middleware.RequireAuth(auth))
	group.Use(middleware.RequireAdmin(cfg.AdminEmails))

	group.GET("/stats", func(c *gin.Context) {
		if userID := c.Query("user_id"); userID != "" {
			c.JSON(http.StatusOK, gin.H{"success": true, "stats": store.GetStats(userID)})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"total_chunks": store.Len(),
			"dimension":    store.Dimension(),
		})
	})

	group.GET("/users/:user_id/files", func(c *gin.Context) {
		userID := c.Param("user_id")
		records, err := chat.GetUserFiles(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể tải danh sách file", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"files":          records,
			"indexed_files":  store.Filenames(userID),
			"indexed_chunks": store.CountByUser(userID),
		})
	})

	group.GET("/users/:user_id/export", func(c *gin.Context) {
		userID := c.Param("user_id")
		data, count, err := export.ExportUserHistory(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể xuất lịch sử hội thoại", gin.H{"error": err.Error()})
			return
		}

		filename := fmt.Sprintf("chat-history-%s-%s.xlsx", userID, time.Now().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Header("X-Export-Count", fmt.Sprintf("%d", count))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	})
}
