package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
)

// multipartOverhead leaves room for the non-file fields of a form.
const multipartOverhead = 1 << 20

// ParseMultipart caps the body at maxBytes plus room for text fields and
// parses the form. A urlencoded form without files is accepted as well.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	err := r.ParseMultipartForm(maxBytes + multipartOverhead)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "File too large").WithDetails(map[string]any{"limit_bytes": maxBytes})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid multipart form")
	}
	return nil
}

// FormFile returns the named upload, or nil when the field is absent.
func FormFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// ParseStatusFile reads the status_file form field: 0 keeps the stored
// proof, 1 replaces or clears it.
func ParseStatusFile(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.FormValue("status_file"))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "status_file is required!").WithDetails(map[string]any{"field": "status_file"})
	}
	value, err := strconv.Atoi(raw)
	if err != nil || (value != 0 && value != 1) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "status_file must be 0 or 1!").WithDetails(map[string]any{"field": "status_file"})
	}
	return value, nil
}
