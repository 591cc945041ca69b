package respond

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOK 成功信封：success=true，pagination 显式为 null
func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, 200, "Done", map[string]any{"value": 42})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Done", body["message"])

	data := body["data"].(map[string]any)
	assert.Equal(t, float64(42), data["value"])
	val, present := data["pagination"]
	assert.True(t, present)
	assert.Nil(t, val)
}

// TestOK_NilData data 为 nil 时信封中仍是对象
func TestOK_NilData(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, 200, "Done", nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	_, ok := body["data"].(map[string]any)
	assert.True(t, ok)
}

// TestPage 分页信封
func TestPage(t *testing.T) {
	rec := httptest.NewRecorder()
	Page(rec, 200, "Listed", map[string]any{"items": []int{}}, NewPagination(2, 10, 35))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	pg := body["data"].(map[string]any)["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pg["currentPage"])
	assert.Equal(t, float64(4), pg["totalPages"])
	assert.Equal(t, float64(35), pg["totalItems"])
}

// TestNewPagination 总页数向上取整
func TestNewPagination(t *testing.T) {
	assert.Equal(t, 4, NewPagination(1, 10, 35).TotalPages)
	assert.Equal(t, 1, NewPagination(1, 10, 10).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
	assert.Equal(t, 1, NewPagination(1, 0, 5).TotalPages, "limit 非法时回退默认值")
}

// TestError 错误信封
func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, 404, "Event not found")

	assert.Equal(t, 404, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(404), body["status"])
	assert.Equal(t, "Event not found", body["message"])
	_, present := body["error"]
	assert.True(t, present)
}
