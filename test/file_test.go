package test

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskWithThreeAttachments(t *testing.T) {
	app := CreateTestApp()
	token, _ := RegisterAndLogin(t, app, uniqueEmail("attach"), "filepass")

	files := []testFile{
		{Name: "notes.txt", Content: "first file", ContentType: "text/plain"},
		{Name: "summary.pdf", Content: "%PDF-1.4 fake", ContentType: "application/pdf"},
		{Name: "photo.png", Content: "\x89PNG fake", ContentType: "image/png"},
	}
	task := createTask(t, app, token, map[string]string{"title": "With files"}, files)

	docs := task["documents"].([]interface{})
	require.Len(t, docs, 3)
	for _, raw := range docs {
		doc := raw.(map[string]interface{})
		assert.NotEmpty(t, doc["url"])
		assert.NotEmpty(t, doc["filename"])
		assert.Greater(t, doc["size"].(float64), float64(0))
	}
}

func TestUpdateTaskAppendsDocuments(t *testing.T) {
	app := CreateTestApp()
	token, _ := RegisterAndLogin(t, app, uniqueEmail("append"), "filepass")

	task := createTask(t, app, token, map[string]string{"title": "Growing"}, []testFile{
		{Name: "one.txt", Content: "one", ContentType: "text/plain"},
	})
	taskID := int(task["id"].(float64))

	req := newTaskRequest(t, "PATCH", fmt.Sprintf("/api/task/updateTask/%d", taskID), token,
		nil, []testFile{
			{Name: "two.txt", Content: "two", ContentType: "text/plain"},
		})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	result := decodeBody(t, resp)
	updated := result["updatedTask"].(map[string]interface{})

	// The original document survives; the new one is appended.
	assert.Len(t, updated["documents"].([]interface{}), 2)
}

func TestCreateTaskRejectsSixthFile(t *testing.T) {
	app := CreateTestApp()
	token, _ := RegisterAndLogin(t, app, uniqueEmail("toomany"), "filepass")

	files := make([]testFile, 6)
	for i := range files {
		files[i] = testFile{
			Name:        fmt.Sprintf("f%d.txt", i),
			Content:     "x",
			ContentType: "text/plain",
		}
	}
	req := newTaskRequest(t, "POST", "/api/task/createTask", token,
		map[string]string{"title": "Too many"}, files)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateTaskRejectsDisallowedExtension(t *testing.T) {
	app := CreateTestApp()
	token, _ := RegisterAndLogin(t, app, uniqueEmail("badext"), "filepass")

	req := newTaskRequest(t, "POST", "/api/task/createTask", token,
		map[string]string{"title": "Nope"}, []testFile{
			{Name: "malware.exe", Content: "MZ", ContentType: "application/octet-stream"},
		})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	resp.Body.Close()
}

func TestListAndDownloadDocuments(t *testing.T) {
	app := CreateTestApp()
	token, _ := RegisterAndLogin(t, app, uniqueEmail("download"), "filepass")

	task := createTask(t, app, token, map[string]string{"title": "Download me"}, []testFile{
		{Name: "report.txt", Content: "the report body", ContentType: "text/plain"},
	})
	taskID := int(task["id"].(float64))

	resp := doJSON(t, app, "GET", fmt.Sprintf("/api/task/documents/%d", taskID), token, nil)
	require.Equal(t, 200, resp.StatusCode)
	result := decodeBody(t, resp)
	docs := result["data"].([]interface{})
	require.Len(t, docs, 1)
	docID := int(docs[0].(map[string]interface{})["id"].(float64))

	dlReq := httptest.NewRequest("GET", fmt.Sprintf("/api/task/documents/download/%d", docID), nil)
	dlReq.Header.Set("Authorization", "Bearer "+token)
	dlResp, err := app.Test(dlReq, -1)
	require.NoError(t, err)
	defer dlResp.Body.Close()
	require.Equal(t, 200, dlResp.StatusCode)
	body, err := io.ReadAll(dlResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "the report body", string(body))
}

func TestDocumentsForbiddenForNonAssignee(t *testing.T) {
	app := CreateTestApp()
	tokenA, _ := RegisterAndLogin(t, app, uniqueEmail("docowner"), "filepass")
	tokenB, _ := RegisterAndLogin(t, app, uniqueEmail("docintruder"), "filepass")

	task := createTask(t, app, tokenA, map[string]string{"title": "Secret docs"}, []testFile{
		{Name: "secret.txt", Content: "hidden", ContentType: "text/plain"},
	})
	taskID := int(task["id"].(float64))
	docID := int(task["documents"].([]interface{})[0].(map[string]interface{})["id"].(float64))

	resp := doJSON(t, app, "GET", fmt.Sprintf("/api/task/documents/%d", taskID), tokenB, nil)
	assert.Equal(t, 403, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, "GET", fmt.Sprintf("/api/task/documents/download/%d", docID), tokenB, nil)
	assert.Equal(t, 403, resp.StatusCode)
	resp.Body.Close()
}
