package upload

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
	"strings"
	"time"
)

const (
	DefaultZeroXZeroURL = "https://0x0.st"
	DefaultCatboxURL    = "https://catbox.moe/user/api.php"
	DefaultTmpfilesURL  = "https://tmpfiles.org/api/v1/upload"

	// DefaultTimeout bounds a single upload attempt.
	DefaultTimeout = 60 * time.Second

	maxResponseBody = 1 << 20
)

// formBackend posts the file as multipart form data and parses the answer.
type formBackend struct {
	name      string
	endpoint  string
	fileField string
	fields    map[string]string
	parse     func(body []byte) (string, error)
	client    *http.Client
}

// NewZeroXZero creates a 0x0.st backend. An empty endpoint uses the public service.
// Success is a plain-text body holding the file URL.
func NewZeroXZero(endpoint string) Backend {
	return &formBackend{
		name:      BackendZeroXZero,
		endpoint:  orDefault(endpoint, DefaultZeroXZeroURL),
		fileField: "file",
		parse:     parsePlainURL,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
}

// NewCatbox creates a catbox.moe backend. An empty endpoint uses the public service.
// Success is a plain-text body holding the file URL.
func NewCatbox(endpoint string) Backend {
	return &formBackend{
		name:      BackendCatbox,
		endpoint:  orDefault(endpoint, DefaultCatboxURL),
		fileField: "fileToUpload",
		fields:    map[string]string{"reqtype": "fileupload"},
		parse:     parsePlainURL,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
}

// NewTmpfiles creates a tmpfiles.org backend. An empty endpoint uses the public service.
// Success is JSON with a non-empty data.url; that view URL is rewritten to
// its direct-download form.
func NewTmpfiles(endpoint string) Backend {
	return &formBackend{
		name:      BackendTmpfiles,
		endpoint:  orDefault(endpoint, DefaultTmpfilesURL),
		fileField: "file",
		parse:     parseTmpfiles,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
}

func (b *formBackend) Name() string { return b.name }

func (b *formBackend) Upload(ctx context.Context, f File) (string, error) {
	body, contentType, err := encodeMultipart(b.fileField, f, b.fields)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s error (status %d): %s", ErrRejected, b.name, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return b.parse(respBody)
}

func encodeMultipart(fileField string, f File, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": fileField, "filename": f.Name}))
	if f.MimeType != "" {
		h.Set("Content-Type", f.MimeType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func parsePlainURL(body []byte) (string, error) {
	u, err := parsePublicURL(string(body))
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

type tmpfilesResponse struct {
	Status string `json:"status"`
	Data   struct {
		URL string `json:"url"`
	} `json:"data"`
}

func parseTmpfiles(body []byte) (string, error) {
	var resp tmpfilesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: invalid json: %v", ErrRejected, err)
	}
	u, err := parsePublicURL(resp.Data.URL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(u.Path, "/dl/") {
		u.Path = "/dl" + u.Path
	}
	return u.String(), nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
