// Package storage uploads prescription documents to a file store and returns
// their public URL.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pharmacy-service/pkg/config"
)

// Uploader stores a document under key and returns its public URL.
// Delete removes it again; a missing key is not an error.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the uploader selected by cfg.Driver
func New(cfg *config.StorageConfig, log *zap.Logger) (Uploader, error) {
	switch cfg.Driver {
	case "local", "":
		return NewLocalUploader(cfg.LocalDir, cfg.PublicBaseURL), nil
	case "http":
		if cfg.UploadURL == "" {
			return nil, fmt.Errorf("STORAGE_UPLOAD_URL is required for the http storage driver")
		}
		return NewHTTPUploader(cfg.UploadURL, cfg.APIKey, cfg.Timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// LocalUploader writes documents below Dir and serves them from BaseURL
type LocalUploader struct {
	Dir     string
	BaseURL string
}

func NewLocalUploader(dir, baseURL string) *LocalUploader {
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (u *LocalUploader) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := filepath.Clean("/" + key)
	path := filepath.Join(u.Dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return u.BaseURL + filepath.ToSlash(clean), nil
}

func (u *LocalUploader) Delete(ctx context.Context, key string) error {
	path := filepath.Join(u.Dir, filepath.Clean("/"+key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}

// HTTPUploader posts documents to an object storage endpoint as multipart form data.
// The endpoint answers with {"url": "..."}.
type HTTPUploader struct {
	UploadURL  string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type uploadResponse struct {
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
	Error     string `json:"error"`
}

func NewHTTPUploader(uploadURL, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPUploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPUploader{
		UploadURL:  uploadURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	u.Logger.Info("Uploading document", zap.String("key", key))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("public_id", key); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filepath.Base(key))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.UploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.APIKey)
	}

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		u.Logger.Error("Upload request failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		u.Logger.Error("Failed to read upload response", zap.Error(err))
		return "", err
	}

	var parsed uploadResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.Logger.Error("Upload rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))
		return "", fmt.Errorf("upload failed: %d %s", resp.StatusCode, parsed.Error)
	}

	if parsed.SecureURL != "" {
		return parsed.SecureURL, nil
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("upload response has no url")
	}
	return parsed.URL, nil
}

// Delete sends DELETE {UploadURL}?public_id=key
func (u *HTTPUploader) Delete(ctx context.Context, key string) error {
	endpoint, err := url.Parse(u.UploadURL)
	if err != nil {
		return err
	}
	q := endpoint.Query()
	q.Set("public_id", key)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint.String(), nil)
	if err != nil {
		return err
	}
	if u.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.APIKey)
	}

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		u.Logger.Error("Delete request failed", zap.String("key", key), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete failed: %d", resp.StatusCode)
	}
	return nil
}
