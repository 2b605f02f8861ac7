// Package transport wraps the retrying HTTP client with the pipeline's
// request/response contract. Every network-facing component (detectors,
// scraper) goes through it: failures come back as a failed Response, never as
// an error crossing the detector boundary.
package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/carlmjohnson/versioninfo"

	"github.com/railguard/railguard/pkg/robusthttp"
)

// Response classifies the outcome of a request. Success is true only for
// 2xx. Transport-level failures (connection refused, timeout) surface with
// StatusCode 0 and ErrorMessage set.
type Response struct {
	StatusCode   int
	Body         []byte
	Headers      http.Header
	Success      bool
	ErrorMessage string
}

// Request describes a POST. When ContentType is multipart/form-data and
// BinaryData is set, the body is a form file upload (used for image
// classification uploads); otherwise Body is sent as-is.
type Request struct {
	URL         string
	Headers     map[string]string
	Body        []byte
	BinaryData  []byte
	ContentType string
	FileField   string // multipart field name, default "media"
	FileName    string // multipart file name, default "upload"
}

type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a transport on the shared robusthttp retry stack.
func NewClient(logger *slog.Logger, options ...robusthttp.Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	opts := append([]robusthttp.Option{robusthttp.WithLogger(logger)}, options...)
	return &Client{
		httpClient: robusthttp.NewClient(opts...),
		logger:     logger.With("subsystem", "transport"),
	}
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{ErrorMessage: err.Error()}
	}
	applyHeaders(req, headers)
	return c.do(req)
}

func (c *Client) Post(ctx context.Context, r Request) Response {
	var body io.Reader
	contentType := r.ContentType

	if r.ContentType == "multipart/form-data" && len(r.BinaryData) > 0 {
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)
		field := r.FileField
		if field == "" {
			field = "media"
		}
		name := r.FileName
		if name == "" {
			name = "upload"
		}
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			return Response{ErrorMessage: err.Error()}
		}
		if _, err := part.Write(r.BinaryData); err != nil {
			return Response{ErrorMessage: err.Error()}
		}
		if err := writer.Close(); err != nil {
			return Response{ErrorMessage: err.Error()}
		}
		body = buf
		contentType = writer.FormDataContentType()
	} else if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	} else if len(r.BinaryData) > 0 {
		body = bytes.NewReader(r.BinaryData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, body)
	if err != nil {
		return Response{ErrorMessage: err.Error()}
	}
	applyHeaders(req, r.Headers)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) Response {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "railguard/"+versioninfo.Short())
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed at transport level", "url", req.URL.String(), "err", err)
		return Response{StatusCode: 0, Success: false, ErrorMessage: err.Error()}
	}
	defer res.Body.Close()

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{StatusCode: res.StatusCode, Headers: res.Header, ErrorMessage: err.Error()}
	}

	resp := Response{
		StatusCode: res.StatusCode,
		Body:       respBytes,
		Headers:    res.Header,
		Success:    res.StatusCode >= 200 && res.StatusCode < 300,
	}
	if !resp.Success {
		resp.ErrorMessage = res.Status
	}
	return resp
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
