package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMediaRouter(dir string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/chat/upload/media", NewMediaHandler(dir, nil).Upload)
	return r
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadRoutesImageSubdir(t *testing.T) {
	dir := t.TempDir()
	router := setupMediaRouter(dir)

	body, contentType := multipartBody(t, "cat.PNG", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/chat/upload/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success      bool   `json:"success"`
		URL          string `json:"url"`
		Type         string `json:"type"`
		OriginalName string `json:"original_name"`
		Filename     string `json:"filename"`
		Size         int64  `json:"size"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.URL, "/media/images/"))
	assert.Equal(t, "image", resp.Type)
	assert.Equal(t, "cat.PNG", resp.OriginalName)
	assert.True(t, strings.HasSuffix(resp.Filename, ".png"))
	assert.EqualValues(t, 9, resp.Size)

	stored, err := os.ReadFile(filepath.Join(dir, "images", resp.Filename))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), stored)
}

func TestUploadUnknownTypeGoesToFiles(t *testing.T) {
	router := setupMediaRouter(t.TempDir())

	body, contentType := multipartBody(t, "doc.pdf", "application/pdf", []byte("pdf"))
	req := httptest.NewRequest(http.MethodPost, "/chat/upload/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, strings.HasPrefix(resp["url"].(string), "/media/files/"))
}

func TestUploadMissingFile(t *testing.T) {
	router := setupMediaRouter(t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/chat/upload/media", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSanitizeExt(t *testing.T) {
	assert.Equal(t, ".png", sanitizeExt("photo.PNG"))
	assert.Equal(t, ".mp4", sanitizeExt("/etc/../video.mp4"))
	assert.Equal(t, "", sanitizeExt("noext"))
	assert.Equal(t, "", sanitizeExt("weird.p;ng"))
}

func TestMediaSubdir(t *testing.T) {
	for contentType, want := range map[string][2]string{
		"image/jpeg":      {"images", "image"},
		"video/mp4":       {"videos", "video"},
		"audio/ogg":       {"audios", "audio"},
		"application/zip": {"files", "file"},
		"":                {"files", "file"},
	} {
		subdir, kind := mediaSubdir(contentType)
		assert.Equal(t, want[0], subdir)
		assert.Equal(t, want[1], kind)
	}
}
