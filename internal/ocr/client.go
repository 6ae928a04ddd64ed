// Package ocr calls the hosted table-extraction service used for bulk
// import from invoice scans.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type FileType string

const (
	FileImage FileType = "image"
	FilePDF   FileType = "pdf"
)

// DetectFileType classifies an upload by content type, then by file name.
func DetectFileType(contentType, filename string) (FileType, bool) {
	ct := strings.ToLower(contentType)
	switch {
	case ct == "application/pdf":
		return FilePDF, true
	case strings.HasPrefix(ct, "image/"):
		return FileImage, true
	}
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return FilePDF, true
	case strings.HasSuffix(name, ".png"), strings.HasSuffix(name, ".jpg"),
		strings.HasSuffix(name, ".jpeg"), strings.HasSuffix(name, ".webp"):
		return FileImage, true
	}
	return "", false
}

type request struct {
	Base64File string   `json:"base64File"`
	FileType   FileType `json:"fileType"`
}

// Result is the table the service extracted.
type Result struct {
	Headers []string            `json:"headers"`
	Data    []map[string]string `json:"data"`
}

type response struct {
	Success bool                `json:"success"`
	Data    []map[string]string `json:"data"`
	Headers []string            `json:"headers"`
	Error   string              `json:"error,omitempty"`
}

var ErrNotConfigured = errors.New("ocr endpoint not configured")

// Error is a failed extraction. Message is safe to show to the user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	log        *zap.Logger
}

// New returns a client for endpoint. Requests carry no retry; timeout bounds
// each call.
func New(endpoint, apiKey string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid ocr endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		log:        log.Named("ocr"),
	}, nil
}

// Extract uploads file and returns the table found in it.
func (c *Client) Extract(ctx context.Context, file []byte, fileType FileType) (*Result, error) {
	if len(file) == 0 {
		return nil, c.fail(errors.New("empty file"))
	}
	body, err := json.Marshal(request{
		Base64File: base64.StdEncoding.EncodeToString(file),
		FileType:   fileType,
	})
	if err != nil {
		return nil, c.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, c.fail(err)
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 400 {
			return nil, c.fail(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
		}
		return nil, c.fail(fmt.Errorf("decode response: %w", err))
	}
	if resp.StatusCode >= 400 || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, c.fail(fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	if len(out.Data) == 0 {
		return nil, c.fail(errors.New("no data extracted"))
	}

	c.log.Info("ocr extraction complete",
		zap.String("file_type", string(fileType)),
		zap.Int("rows", len(out.Data)),
		zap.Duration("latency", time.Since(start)),
	)
	return &Result{Headers: headersOf(out), Data: out.Data}, nil
}

// headersOf falls back to the keys of the first row when the service omits
// the header list.
func headersOf(out response) []string {
	if len(out.Headers) > 0 {
		return out.Headers
	}
	headers := make([]string, 0, len(out.Data[0]))
	for k := range out.Data[0] {
		headers = append(headers, k)
	}
	return headers
}

func (c *Client) fail(err error) error {
	e := &Error{Message: UserMessage(err), Err: err}
	c.log.Warn("ocr extraction failed", zap.Error(err), zap.String("user_message", e.Message))
	return e
}
