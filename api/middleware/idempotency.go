package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/ptm-finance-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	// jsonBodyLimit caps the JSON mutations; uploads get their configured
	// file limit plus formFieldAllowance for the text fields.
	jsonBodyLimit      int64 = 1 << 20
	formFieldAllowance int64 = 1 << 20
)

// idempotentRoutes lists the mutations that replay a stored response when a
// client retries with the same Idempotency-Key. True marks an upload route.
var idempotentRoutes = map[string]bool{
	http.MethodPut + " /api/finance/cash-balance": false,
	http.MethodPost + " /api/finance/dues":        false,
	http.MethodPost + " /api/finance/dues/import": true,
}

// idempotencyRecord is either the reservation held while the first request
// runs (Pending) or the response it produced.
type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency is opt-in per request: without the header the request runs
// normally. The key is reserved before the handler runs, so concurrent
// retries see 409 instead of executing twice.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, uploadLimit int64, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			upload, ok := routeLimitKind(r.Method, r.URL.Path)
			if store == nil || ttl <= 0 || clientKey == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			limit := jsonBodyLimit
			if upload {
				limit = uploadLimit + formFieldAllowance
			}
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Request body too large").
						WithDetails(map[string]any{"limit_bytes": limit}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)

			stored, err := store.Get(ctx, key)
			if err != nil && !pkgredis.IsNil(err) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if stored == "" {
				reservation, _ := json.Marshal(idempotencyRecord{Pending: true, RequestHash: requestHash})
				reserved, err := store.SetNX(ctx, key, string(reservation), ttl)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
					return
				}
				if reserved {
					runAndStore(w, r, next, store, key, requestHash, ttl, logg)
					return
				}
				// lost the race; whatever the winner holds decides the reply
				if stored, err = store.Get(ctx, key); err != nil && !pkgredis.IsNil(err) {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
					return
				}
			}

			var record idempotencyRecord
			if stored == "" {
				record = idempotencyRecord{Pending: true, RequestHash: requestHash}
			} else if err := json.Unmarshal([]byte(stored), &record); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
				return
			}
			switch {
			case record.RequestHash != requestHash:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			case record.Pending:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "A request with this Idempotency-Key is still in progress"))
			default:
				record.replay(w)
			}
		})
	}
}

// runAndStore executes the reserved request and swaps the reservation for
// its response. 5xx outcomes release the key so the request stays
// retryable.
func runAndStore(w http.ResponseWriter, r *http.Request, next http.Handler, store pkgredis.IdempotencyStore, key, requestHash string, ttl time.Duration, logg *logger.Logger) {
	ctx := context.WithoutCancel(r.Context())
	stored := false
	defer func() {
		if stored {
			return
		}
		if err := store.Del(ctx, key); err != nil {
			logg.Error(ctx, "release idempotency key", err)
		}
	}()

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)

	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		return
	}
	payload, err := json.Marshal(idempotencyRecord{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: requestHash,
	})
	if err != nil {
		logg.Error(ctx, "marshal idempotency record", err)
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		logg.Error(ctx, "persist idempotency record", err)
		return
	}
	stored = true
}

func (rec idempotencyRecord) replay(w http.ResponseWriter) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// requestScope keeps records of different actors and routes apart.
func requestScope(r *http.Request) string {
	return strconv.FormatInt(ActorIDFromContext(r.Context()), 10) + "|" + r.Method + "|" + r.URL.Path
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// routeLimitKind reports whether the route is idempotent and whether it
// takes an upload.
func routeLimitKind(method, path string) (upload, ok bool) {
	path = strings.TrimSuffix(path, "/")
	upload, ok = idempotentRoutes[method+" "+path]
	return upload, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
