// Package backend talks to the remote YOLO inference service over HTTP.
// Every call is exactly one request/response; retries are the caller's business.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
	"yoloview/internal/config"
	"yoloview/internal/dto"
	"yoloview/internal/logger"
)

const (
	processFramePath = "/process-frame/"
	processImagePath = "/process-image/"
	downloadPath     = "/download/"
	cleanupPath      = "/cleanup/"

	frameFieldName = "file"
	frameFilename  = "frame.jpg"

	// maxErrorBody bounds how much of an error response is kept for the message.
	maxErrorBody = 4 << 10
	// maxFrameBody bounds an annotated frame returned by the backend.
	maxFrameBody = 16 << 20
)

// Client is the inference backend client.
type Client struct {
	baseURL       string
	http          *http.Client
	streamTimeout time.Duration
	uploadTimeout time.Duration
	maxFrameBody  int64
	logger        *logger.Logger
}

// NewClient creates a client for config.BackendURL.
func NewClient(config *config.Config, logger *logger.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(config.BackendURL, "/"),
		http:          &http.Client{},
		streamTimeout: config.StreamTimeout,
		uploadTimeout: config.UploadTimeout,
		maxFrameBody:  maxFrameBody,
		logger:        logger,
	}
}

// ProcessFrame uploads one JPEG frame and returns the annotated image bytes.
func (c *Client) ProcessFrame(ctx context.Context, jpeg []byte) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, c.streamTimeout)
	defer cancel()

	resp, err := c.postFile(ctx, processFramePath, frameFilename, "image/jpeg", jpeg)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxFrameBody+1))
	if err != nil {
		return nil, classify("process frame", err)
	}
	if int64(len(body)) > c.maxFrameBody {
		return nil, fmt.Errorf("process frame: %w: response larger than %d bytes", ErrDecode, c.maxFrameBody)
	}
	if mediaType(resp) == "application/json" {
		return nil, errorFromJSON(resp.StatusCode, body)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("process frame: %w: empty body", ErrDecode)
	}
	return body, nil
}

// ProcessImage uploads a still image and returns the identifiers of the generated artifacts.
func (c *Client) ProcessImage(ctx context.Context, filename string, data []byte) (*dto.ProcessedResult, error) {
	ctx, cancel := withTimeout(ctx, c.uploadTimeout)
	defer cancel()

	contentType := http.DetectContentType(data)
	resp, err := c.postFile(ctx, processImagePath, filename, contentType, data)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var payload struct {
		dto.ProcessedResult
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return nil, classify("process image", ctx.Err())
		}
		return nil, fmt.Errorf("process image: %w: %v", ErrDecode, err)
	}
	if payload.Error != "" {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if payload.RequestID == "" || payload.AnnotatedFilename == "" || payload.PDFFilename == "" {
		return nil, fmt.Errorf("process image: %w: incomplete result", ErrDecode)
	}

	result := payload.ProcessedResult
	c.logger.Info("Image %s processed as request %s", filename, result.RequestID)
	return &result, nil
}

// DownloadURL returns the backend URL of an artifact produced by a previous request.
func (c *Client) DownloadURL(requestID, filename string) string {
	return c.baseURL + downloadPath + url.PathEscape(requestID) + "/" + url.PathEscape(filename)
}

// Download fetches an artifact. The caller closes the returned body.
func (c *Client) Download(ctx context.Context, requestID, filename string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(requestID, filename), nil)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", classify("download", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, "", err
	}
	// The backend answers a missing file with 200 and a JSON error.
	if mediaType(resp) == "application/json" {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "", errorFromJSON(http.StatusNotFound, body)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Cleanup asks the backend to delete the artifacts of a request.
func (c *Client) Cleanup(ctx context.Context, requestID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+cleanupPath+url.PathEscape(requestID), nil)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify("cleanup", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return checkStatus(resp)
}

func (c *Client) postFile(ctx context.Context, path, filename, contentType string, data []byte) (*http.Response, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, frameFieldName, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify("POST "+path, err)
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into a *ServerError.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if mediaType(resp) == "application/json" {
		return errorFromJSON(resp.StatusCode, body)
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

// errorFromJSON extracts {"error": "..."} or {"detail": "..."} from a body.
func errorFromJSON(status int, body []byte) error {
	var payload struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	msg := payload.Error
	if msg == "" && payload.Detail != nil {
		msg = fmt.Sprint(payload.Detail)
	}
	return &ServerError{StatusCode: status, Message: msg}
}

func mediaType(resp *http.Response) string {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
