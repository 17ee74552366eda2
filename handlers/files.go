package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/apperr"
	"github.com/sitework/sitework/internal/files"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/pkg/middleware"
	"github.com/sitework/sitework/pkg/response"
)

// MaxUploadBytes caps a single multipart upload.
const MaxUploadBytes = 25 << 20

type FileHandler struct {
	svc *files.Service
}

func NewFileHandler(svc *files.Service) *FileHandler { return &FileHandler{svc: svc} }

func (h *FileHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/files")
	g.POST("", middleware.RequirePermission(permissions.FilesWrite), h.Upload)
	g.GET("/*key", middleware.RequirePermission(permissions.FilesRead), h.URL)
}

// Upload stores the multipart "file" field. Optional form fields: bucket,
// documentType and documentId.
func (h *FileHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperr.Field("file", "is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, apperr.Internal("open upload", err))
		return
	}
	defer f.Close()

	ref, err := h.svc.Put(c.Request.Context(), middleware.CurrentUserID(c), files.Upload{
		Bucket:       c.PostForm("bucket"),
		Filename:     fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		Body:         f,
		DocumentType: c.PostForm("documentType"),
		DocumentID:   c.PostForm("documentId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ref)
}

// URL returns a presigned download URL for the object.
func (h *FileHandler) URL(c *gin.Context) {
	url, exp, err := h.svc.URL(c.Request.Context(), c.Query("bucket"), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"url": url, "expiresAt": exp})
}
