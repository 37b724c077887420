package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MediaHandler stores uploaded chat attachments on local disk, routed into a
// per-type subdirectory. Messages carry only the returned URL.
type MediaHandler struct {
	dir string
	log *zap.Logger
}

// NewMediaHandler constructs a MediaHandler rooted at dir.
func NewMediaHandler(dir string, log *zap.Logger) *MediaHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MediaHandler{dir: dir, log: log}
}

// Upload accepts one multipart file and returns its public path.
func (h *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	subdir, kind := mediaSubdir(contentType)
	name := fmt.Sprintf("%s%s", strings.ReplaceAll(uuid.NewString(), "-", ""), sanitizeExt(file.Filename))
	dst := filepath.Join(h.dir, subdir, name)

	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.log.Error("media save failed", zap.String("path", dst), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"url":           fmt.Sprintf("/media/%s/%s", subdir, name),
		"type":          kind,
		"content_type":  contentType,
		"original_name": filepath.Base(file.Filename),
		"filename":      name,
		"size":          file.Size,
	})
}

func mediaSubdir(contentType string) (string, string) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "images", "image"
	case strings.HasPrefix(contentType, "video/"):
		return "videos", "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audios", "audio"
	default:
		return "files", "file"
	}
}

// sanitizeExt keeps only a plain extension from the client-supplied name; the
// stored filename itself is always server-generated.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
