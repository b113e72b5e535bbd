package storage

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, filename, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestNormalizeFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Summer_Sale_20240301_093000.000000.png", normalizeFilename("Summer Sale!.PNG", now))
	assert.Equal(t, "file_20240301_093000.000000.mp4", normalizeFilename("###.mp4", now))
	assert.Equal(t, "passwd_20240301_093000.000000", normalizeFilename("../../etc/passwd", now))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType(fileHeader(t, "a.png", "image/png", []byte("x"))))
	assert.Equal(t, "video/mp4", ContentType(fileHeader(t, "a.mp4", "application/octet-stream", []byte("x"))))
	assert.Equal(t, "text/html", ContentType(fileHeader(t, "a.html", "", []byte("x"))))
}

func TestLocalStorageSaveFile(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(filepath.Join(dir, "uploads"), "/uploads/")

	out, err := ls.SaveFile(context.Background(), fileHeader(t, "banner.png", "image/png", []byte("pngdata")))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.URL, "/uploads/banner_"))
	assert.EqualValues(t, 7, out.SizeBytes)
	assert.Equal(t, "image/png", out.ContentType)

	data, err := os.ReadFile(filepath.Join(ls.Dir(), strings.TrimPrefix(out.URL, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "pngdata", string(data))
}
