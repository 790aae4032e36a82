package handlers

import (
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDueDate(t *testing.T) {
	got, err := parseDueDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseDueDate("2026-09-15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseDueDate("2026-09-15T10:30:00Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Hour())

	for _, bad := range []string{"not-a-date", "15/09/2026", "2026-13-40"} {
		_, err = parseDueDate(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func fileHeader(name, contentType string, size int64) *multipart.FileHeader {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", contentType)
	return &multipart.FileHeader{
		Filename: name,
		Header:   header,
		Size:     size,
	}
}

func TestValidateFile(t *testing.T) {
	assert.NoError(t, validateFile(fileHeader("a.pdf", "application/pdf", 1024)))
	assert.NoError(t, validateFile(fileHeader("b.png", "image/png", 1024)))
	assert.NoError(t, validateFile(fileHeader("c.txt", "text/plain", 1024)))
	assert.NoError(t, validateFile(fileHeader("d.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", 1024)))

	assert.Error(t, validateFile(fileHeader("e.exe", "application/octet-stream", 1024)))
	assert.Error(t, validateFile(fileHeader("f.pdf", "application/pdf", 6<<20)))
	assert.Error(t, validateFile(fileHeader("g.txt", "application/octet-stream", 1024)))
}

func TestTaskCacheKey(t *testing.T) {
	assert.Equal(t, "task:7", taskCacheKey(7))
	assert.Equal(t, "user:7", userCacheKey(7))
}
