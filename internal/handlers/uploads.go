package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/validate"
)

// Upload accepts one image in the multipart field "file" and passes it to
// the file upload service. The content type is sniffed, not trusted.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	limit := a.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeValidation(w, []validate.FieldError{{Field: "file", Description: "File is too large"}})
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, []validate.FieldError{{Field: "file", Description: "File is required"}})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contentType := validate.Sniff(data)
	if errs := validate.Image(contentType, int64(len(data)), limit); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	name := r.FormValue("fileName")
	if name == "" {
		name = filepath.Base(hdr.Filename)
	}
	res, err := a.uploads.Upload(r.Context(), name, contentType, bytes.NewReader(data))
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "upload", map[string]any{"file": name, "bytes": len(data)})
	writeJSON(w, http.StatusCreated, res)
}
