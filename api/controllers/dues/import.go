package dues

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/api/middleware"
	"github.com/angelmondragon/ptm-finance-backend/api/responses"
	"github.com/angelmondragon/ptm-finance-backend/api/validators"
	"github.com/angelmondragon/ptm-finance-backend/internal/duesimport"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/storage"
)

const importLockTTL = 10 * time.Minute

// ImportStore keeps an uploaded sheet on disk for the duration of an import.
type ImportStore interface {
	SaveImport(ctx context.Context, fh *multipart.FileHeader) (storage.SavedFile, error)
	Delete(ctx context.Context, p string) error
}

// ImportLocker serializes imports of the same period year. Nil disables it.
type ImportLocker interface {
	AcquireImportLock(ctx context.Context, year int, ttl time.Duration) (bool, func(context.Context), error)
}

// Import applies a dues spreadsheet for one period year and reports the
// outcome per row. The uploaded file is always removed afterwards.
func Import(svc duesimport.Service, files ImportStore, locker ImportLocker, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || files == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues import service unavailable"))
			return
		}

		if err := validators.ParseMultipart(w, r, maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		year, err := validators.ParsePeriodYear(r.FormValue("period_year"), true, 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fh := validators.FormFile(r, "file")
		if fh == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "File is required!").
				WithDetails(map[string]string{"file": "File is required!"}))
			return
		}

		if locker != nil {
			ok, release, err := locker.AcquireImportLock(r.Context(), year, importLockTTL)
			if err != nil {
				logg.WarnErr(r.Context(), "import lock unavailable", err)
			} else if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "Another import for this period year is in progress"))
				return
			} else {
				defer release(context.WithoutCancel(r.Context()))
			}
		}

		saved, err := files.SaveImport(r.Context(), fh)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer func() {
			if err := files.Delete(context.WithoutCancel(r.Context()), saved.StoragePath); err != nil {
				logg.WarnErr(r.Context(), "import file cleanup failed", err)
			}
		}()

		rows, err := duesimport.ParseFile(saved.DiskPath)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Import(r.Context(), middleware.ActorIDFromContext(r.Context()), middleware.TokenFromContext(r.Context()), year, rows)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Membership dues imported successfully", result)
	}
}
