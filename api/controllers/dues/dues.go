package dues

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ptm-finance-backend/api/middleware"
	"github.com/angelmondragon/ptm-finance-backend/api/responses"
	"github.com/angelmondragon/ptm-finance-backend/api/validators"
	internaldues "github.com/angelmondragon/ptm-finance-backend/internal/dues"
	"github.com/angelmondragon/ptm-finance-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/storage"
)

const maxSearchLength = 100

// ProofStore saves and removes uploaded payment proofs.
type ProofStore interface {
	SaveProof(ctx context.Context, fh *multipart.FileHeader) (storage.SavedFile, error)
	Delete(ctx context.Context, p string) error
}

type updateStatusRequest struct {
	MemberID    *validators.FlexInt `json:"member_id" validate:"required,gt=0"`
	PeriodYear  *validators.FlexInt `json:"period_year" validate:"required,gte=2000,lte=2100"`
	PeriodMonth *validators.FlexInt `json:"period_month" validate:"required,gte=1,lte=12"`
	Status      string              `json:"status" validate:"required,oneof=paid unpaid"`
}

func (updateStatusRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"member_id.required":    "Member ID must be a number!",
		"member_id.gt":          "Member ID must be a positive number!",
		"period_year.required":  "Period year must be a number!",
		"period_year.gte":       "Period year must be at least 2000!",
		"period_year.lte":       "Period year must be at most 2100!",
		"period_month.required": "Period month must be a number!",
		"period_month.gte":      "Period month must be between 1 and 12!",
		"period_month.lte":      "Period month must be between 1 and 12!",
		"status.required":       "Status must be 'paid' or 'unpaid'!",
		"status.oneof":          "Status must be 'paid' or 'unpaid'!",
	}
}

type amountPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

type pathPayload struct {
	Path *string `json:"path"`
}

// UpdateStatus marks a member's period paid or unpaid and moves the cash
// balance by the dues amount.
func UpdateStatus(svc internaldues.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues service unavailable"))
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDuesStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Status must be 'paid' or 'unpaid'!"))
			return
		}

		result, err := svc.UpdateStatus(r.Context(), middleware.ActorIDFromContext(r.Context()), internaldues.UpdateStatusInput{
			PeriodKey: internaldues.PeriodKey{
				MemberID: req.MemberID.Int64(),
				Year:     int(req.PeriodYear.Int64()),
				Month:    int(req.PeriodMonth.Int64()),
			},
			Status: status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Message, amountPayload{Amount: result.Amount})
	}
}

// List returns the member grid with one cell per month of the period year.
func List(svc internaldues.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues query service unavailable"))
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		year, err := validators.ParsePeriodYear(r.URL.Query().Get("period_year"), false, 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.ParseQueryCursor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetList(r.Context(), middleware.TokenFromContext(r.Context()), internaldues.ListQuery{
			PeriodYear: year,
			Page:       page,
			Cursor:     cursor,
			Limit:      limit,
			Search:     validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Membership dues retrieved successfully", result)
	}
}

// Detail returns one dues record with its member profile.
func Detail(svc internaldues.QueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues query service unavailable"))
			return
		}

		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetDetail(r.Context(), middleware.TokenFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Membership dues detail retrieved successfully", result)
	}
}

// UploadProof replaces, clears or keeps the proof file of a dues record.
// A file saved by this request is removed again when it ends up unused.
func UploadProof(svc internaldues.Service, files ProofStore, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || files == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dues service unavailable"))
			return
		}

		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ParseMultipart(w, r, maxBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		statusFile, err := validators.ParseStatusFile(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var uploaded *string
		if fh := validators.FormFile(r, "proof_file"); fh != nil {
			saved, err := files.SaveProof(r.Context(), fh)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			uploaded = &saved.PublicURL
		}
		discard := func() {
			if uploaded == nil {
				return
			}
			if err := files.Delete(r.Context(), *uploaded); err != nil {
				logg.WarnErr(r.Context(), "proof upload cleanup failed", err)
			}
		}

		result, err := svc.SetProof(r.Context(), middleware.ActorIDFromContext(r.Context()), id, statusFile, uploaded)
		if err != nil {
			discard()
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if uploaded != nil && (result.Path == nil || *result.Path != *uploaded) {
			discard()
		}
		responses.WriteSuccess(w, result.Message, pathPayload{Path: result.Path})
	}
}
