package notebooklm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// UploadResult identifies an uploaded document source.
type UploadResult struct {
	SourceID string `json:"source_id"`
	Filename string `json:"filename"`
}

// AddPDFSource uploads a PDF in three ordered steps: register a placeholder source,
// open a resumable upload session, then send all bytes with finalize.
func (c *Client) AddPDFSource(ctx context.Context, notebookID, filename string, data []byte) (UploadResult, error) {
	sourceID, err := c.registerUpload(ctx, notebookID, filename)
	if err != nil {
		return UploadResult{}, err
	}
	uploadURL, err := c.startUpload(ctx, notebookID, filename, sourceID, len(data))
	if err != nil {
		return UploadResult{}, err
	}
	if err := c.finalizeUpload(ctx, uploadURL, data); err != nil {
		return UploadResult{}, err
	}
	engine.IncrUploads()
	engine.IncrSourcesAdded(1)
	slog.Info("notebooklm: pdf uploaded", slog.String("notebook", notebookID),
		slog.String("source", sourceID), slog.Int("bytes", len(data)))
	return UploadResult{SourceID: sourceID, Filename: filename}, nil
}

func (c *Client) registerUpload(ctx context.Context, notebookID, filename string) (string, error) {
	args := []any{[]any{[]any{filename}}, notebookID, []any{2}, videoCapabilities()}
	payload, err := c.call(ctx, rpcRegisterUpload, args, notebookPath(notebookID))
	if err != nil {
		return "", fmt.Errorf("register upload: %w", err)
	}
	id := ParseRegisteredSourceID(payload)
	if id == "" {
		return "", engine.NewError(engine.CodeMalformedResponse, "register upload: no source id in response")
	}
	return id, nil
}

func (c *Client) startUpload(ctx context.Context, notebookID, filename, sourceID string, size int) (string, error) {
	meta, err := json.Marshal(map[string]string{
		"PROJECT_ID":  notebookID,
		"SOURCE_NAME": filename,
		"SOURCE_ID":   sourceID,
	})
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/upload/_/?authuser=%d", c.baseURL, c.AuthUser())
	resp, err := c.post(ctx, u, meta, map[string]string{
		"Content-Type":                        formContentType,
		"x-goog-upload-command":               "start",
		"x-goog-upload-header-content-length": strconv.Itoa(size),
		"x-goog-upload-protocol":              "resumable",
	})
	if err != nil {
		return "", fmt.Errorf("start upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	uploadURL := resp.Header.Get("x-goog-upload-url")
	if uploadURL == "" {
		return "", engine.NewError(engine.CodeMalformedResponse, "start upload: no upload URL in response")
	}
	return uploadURL, nil
}

func (c *Client) finalizeUpload(ctx context.Context, uploadURL string, data []byte) error {
	resp, err := c.post(ctx, uploadURL, data, map[string]string{
		"Content-Type":          "application/x-www-form-urlencoded;charset=utf-8",
		"x-goog-upload-command": "upload, finalize",
		"x-goog-upload-offset":  "0",
	})
	if err != nil {
		return fmt.Errorf("upload bytes: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// post sends one authenticated POST bounded by the client timeout; non-2xx is REMOTE_REJECTED.
func (c *Client) post(ctx context.Context, u string, body []byte, headers map[string]string) (*http.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", engine.UserAgentChrome)
	if c.cookies != "" {
		req.Header.Set("Cookie", c.cookies)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		defer cancel()
		return nil, timeoutOr(ctx, callCtx, "upload", engine.WrapError(engine.CodeNetworkError, "upload transport", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, engine.Rejected("upload", resp.StatusCode)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *cancelOnClose) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}
