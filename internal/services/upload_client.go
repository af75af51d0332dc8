package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/natnael6825/ecctest/internal/config"
)

// PreferenceClient reads the topic categories posts can be sent to.
type PreferenceClient struct {
	c *Client
}

func NewPreferenceClient(cfg config.Config) *PreferenceClient {
	return &PreferenceClient{c: NewClient("preference", cfg.PreferenceBaseURL, cfg)}
}

// Categories accepts either a bare list or an object with a categories list.
func (p *PreferenceClient) Categories(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.c.GetJSON(ctx, "categories", nil, "", &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}
	var wrapped struct {
		Categories json.RawMessage `json:"categories"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil || len(wrapped.Categories) == 0 {
		return json.RawMessage("[]"), nil
	}
	return wrapped.Categories, nil
}

// UploadClient passes images through to the file upload service.
type UploadClient struct {
	c *Client
}

func NewUploadClient(cfg config.Config) *UploadClient {
	return &UploadClient{c: NewClient("upload", cfg.UploadURL, cfg)}
}

type UploadResult struct {
	FileLink string `json:"filelink"`
	Message  string `json:"message,omitempty"`
}

// Upload sends one file as multipart form data with the file and fileName
// fields the service expects.
func (u *UploadClient) Upload(ctx context.Context, fileName, contentType string, r io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeFilePart(mw, "file", fileName, contentType, r); err != nil {
		return UploadResult{}, err
	}
	if err := mw.WriteField("fileName", fileName); err != nil {
		return UploadResult{}, err
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}
	var out UploadResult
	if err := u.c.SendRaw(ctx, http.MethodPost, "", mw.FormDataContentType(), "", &buf, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}

// writeFilePart adds a file part with an explicit content type, which
// multipart.Writer.CreateFormFile would force to octet-stream.
func writeFilePart(mw *multipart.Writer, field, fileName, contentType string, r io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+escapeQuotes(field)+`"; filename="`+escapeQuotes(fileName)+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

func escapeQuotes(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
