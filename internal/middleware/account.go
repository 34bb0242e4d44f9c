package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/api"
)

const (
	AccountIDKey    contextKey = "accountID"
	AccountIDHeader string     = "X-Account-ID"
)

// Account resolves the calling account for operations that declare the
// AccountID security scheme. It is meant to run as an api handler middleware,
// after the generated wrapper has marked the request as scoped. Requests to
// unscoped operations pass through untouched.
func Account(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, scoped := r.Context().Value(api.AccountIDScopes).([]string); !scoped {
			next.ServeHTTP(w, r)
			return
		}

		raw := strings.TrimSpace(r.Header.Get(AccountIDHeader))
		if raw == "" {
			WriteError(w, r, http.StatusUnauthorized, ErrorCodeMissingAccount, ErrorMessageMissingAccount)
			return
		}

		accountID, err := uuid.Parse(raw)
		if err != nil || accountID == uuid.Nil {
			WriteError(w, r, http.StatusUnauthorized, ErrorCodeInvalidAccount, ErrorMessageInvalidAccount)
			return
		}

		ctx := context.WithValue(r.Context(), AccountIDKey, accountID)
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
			ctx = context.WithValue(ctx, loggerKey, l.With(zap.String("account_id", accountID.String())))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAccountID returns the account resolved by Account.
func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	accountID, ok := ctx.Value(AccountIDKey).(uuid.UUID)
	return accountID, ok
}
