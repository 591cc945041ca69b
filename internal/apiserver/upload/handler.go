// Package upload 活动图片上传
package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"eventhub/internal/apiserver/respond"
	"eventhub/internal/metrics"
)

// Uploader 对象存储上传接口
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}

// Config 上传限制配置
type Config struct {
	MaxSizeBytes int64
	Folder       string
}

// DefaultMaxSize 单文件大小上限
const DefaultMaxSize = 5 << 20

// Handler 上传 HTTP 处理器
type Handler struct {
	uploader Uploader
	cfg      Config
}

// NewHandler 创建上传处理器
func NewHandler(uploader Uploader, cfg Config) *Handler {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSize
	}
	if cfg.Folder == "" {
		cfg.Folder = "events"
	}
	return &Handler{uploader: uploader, cfg: cfg}
}

// RegisterRoutes 注册上传路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/upload/image", h.UploadImage)
}

// UploadImage 上传活动图片，返回可公开访问的 URL
//
// multipart 字段名固定为 image，仅接受 image/* 类型。
// MaxBytesReader 在超限时让表单解析失败，避免先读完再拒绝。
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxSizeBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxSizeBytes); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respond.Error(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respond.Error(w, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respond.Error(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	key := h.objectKey(header.Filename)
	url, err := h.uploader.Upload(r.Context(), key, file, header.Size, contentType)
	if err != nil {
		log.Printf("[upload] object store error: %v", err)
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		respond.Error(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	log.Printf("[upload] Image uploaded: %s (%d bytes)", key, header.Size)
	respond.OK(w, http.StatusOK, "Image uploaded successfully", map[string]any{
		"imageUrl": url,
	})
}

// objectKey 生成对象键：<folder>/<随机名><原扩展名>
// 不使用客户端文件名本身，避免路径注入与重名覆盖
func (h *Handler) objectKey(filename string) string {
	b := make([]byte, 8)
	rand.Read(b)
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s%s", h.cfg.Folder, hex.EncodeToString(b), ext)
}
