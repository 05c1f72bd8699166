package routes

import (
	"errors"
	"net/http"

	"ragviet-backend/middleware"
	"ragviet-backend/models"
	"ragviet-backend/services"
	"ragviet-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupFileRoutes wires document upload, listing, deletion and the
// original-PDF view link.
func SetupFileRoutes(router *gin.Engine, auth *services.AuthService, ingest *services.IngestService, chat *services.ChatService, blob *services.BlobService) {
	group := router.Group("/files")
	group.Use(middleware.RequireAuth(auth))

	group.POST("/upload", func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Không đọc được dữ liệu upload", gin.H{"error": err.Error()})
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "Vui lòng chọn file PDF để upload", nil)
			return
		}

		userID := middleware.GetUserID(c)
		summary, err := ingest.UploadFiles(c.Request.Context(), userID, files)
		if err != nil {
			var batchErr *services.BatchError
			if errors.As(err, &batchErr) {
				utils.RespondWithBadRequest(c, batchErr.Error(), nil)
				return
			}
			utils.RespondWithInternalError(c, "Upload thất bại", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
	})

	group.GET("/list", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		records, err := chat.GetUserFiles(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể tải danh sách file", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "files": records})
	})

	group.POST("/delete", func(c *gin.Context) {
		var req models.DeleteFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Vui lòng chọn file cần xoá", gin.H{"error": err.Error()})
			return
		}

		userID := middleware.GetUserID(c)
		removed, err := ingest.DeleteFile(c.Request.Context(), userID, req.Filename)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"message":        "Đã xoá file: " + req.Filename,
			"removed_chunks": removed,
		})
	})

	group.POST("/clear-all", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		removed, err := ingest.ClearFiles(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể xoá tài liệu", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"message":        "Đã xoá toàn bộ tài liệu",
			"removed_chunks": removed,
		})
	})

	group.GET("/view/:filename", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		filename := c.Param("filename")

		record, err := chat.GetUserFile(c.Request.Context(), userID, filename)
		if err != nil {
			utils.RespondWithInternalError(c, "Không thể tải file", nil)
			return
		}
		if record == nil {
			utils.RespondWithNotFound(c, "Không tìm thấy file: "+filename)
			return
		}

		url, err := blob.ViewURL(c.Request.Context(), userID, filename)
		if err != nil {
			utils.RespondWithNotFound(c, "Không tìm thấy file: "+filename)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "url": url})
	})
}
