// Package respond 统一 API 响应信封
//
// 成功:  {"success": true, "message": ..., "data": {..., "pagination": ...|null}}
// 失败:  {"status": <http status>, "success": false, "message": ..., "error": ...|null}
package respond

import (
	"encoding/json"
	"net/http"
)

// Pagination 分页元数据
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
}

// NewPagination 由总数计算分页元数据
func NewPagination(page, limit int, total int64) *Pagination {
	if limit <= 0 {
		limit = 10
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
	}
}

type successBody struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

type errorBody struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   any    `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// OK 写入成功响应（无分页）
func OK(w http.ResponseWriter, status int, message string, data map[string]any) {
	Page(w, status, message, data, nil)
}

// Page 写入带分页元数据的成功响应
// pagination 为 nil 时信封中 pagination 字段为 null
func Page(w http.ResponseWriter, status int, message string, data map[string]any, pagination *Pagination) {
	if data == nil {
		data = map[string]any{}
	}
	if pagination != nil {
		data["pagination"] = pagination
	} else {
		data["pagination"] = nil
	}
	writeJSON(w, status, successBody{Success: true, Message: message, Data: data})
}

// Error 写入错误响应
func Error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: status, Success: false, Message: message})
}
