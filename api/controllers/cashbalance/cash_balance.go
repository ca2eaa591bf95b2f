package cashbalance

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ptm-finance-backend/api/middleware"
	"github.com/angelmondragon/ptm-finance-backend/api/responses"
	"github.com/angelmondragon/ptm-finance-backend/api/validators"
	internalcashbalance "github.com/angelmondragon/ptm-finance-backend/internal/cashbalance"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
)

const maxDescriptionLength = 255

type balancePayload struct {
	Balance decimal.Decimal `json:"balance"`
}

type updateBalanceRequest struct {
	Status      *bool            `json:"status" validate:"required"`
	Value       *decimal.Decimal `json:"value" validate:"required,gt=0"`
	Description *string          `json:"description" validate:"required,max=255"`
}

func (updateBalanceRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"status.required":      "Status is required!",
		"value.required":       "Value is required!",
		"value.gt":             "Value must be greater than 0!",
		"description.required": "Description is required!",
		"description.max":      "Description must not be longer than 255 characters!",
	}
}

// Get returns the current cash balance, 0 when nothing was ever recorded.
func Get(svc internalcashbalance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash balance service unavailable"))
			return
		}

		balance, err := svc.GetBalance(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Cash balance retrieved successfully", balancePayload{Balance: balance})
	}
}

// Update applies a manual credit (status=true) or debit (status=false).
func Update(svc internalcashbalance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash balance service unavailable"))
			return
		}

		var req updateBalanceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		description := validators.SanitizeString(*req.Description, maxDescriptionLength)
		if description == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Description is required!").
				WithDetails(map[string]string{"description": "Description is required!"}))
			return
		}

		actorID := middleware.ActorIDFromContext(r.Context())
		if actorID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized. User not authenticated."))
			return
		}

		balance, err := svc.UpdateBalance(r.Context(), actorID, internalcashbalance.UpdateBalanceInput{
			Status:      *req.Status,
			Value:       *req.Value,
			Description: description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Cash balance updated successfully", balancePayload{Balance: balance})
	}
}

// History returns balance history newest first, keyset paginated by id.
func History(svc internalcashbalance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash balance service unavailable"))
			return
		}

		cursor, err := validators.ParseQueryCursor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token := strings.TrimSpace(middleware.TokenFromContext(r.Context()))
		result, err := svc.GetHistory(r.Context(), token, pagination.Params{Cursor: cursor, Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "History balance retrieved successfully", result)
	}
}
