package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/omnibank/backoffice/internal/clients"
)

type contextKey string

const operatorKey contextKey = "operator"

// TokenVerifier resolves a bearer token to an operator identity. A nil
// operator with a nil error means the token is not valid.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*clients.Operator, error)
}

// AuthMiddleware rejects requests without a valid bearer token and attaches
// the verified operator to the request context. Every state-changing route
// sits behind it, so individual handlers never check credentials themselves.
type AuthMiddleware struct {
	logger   *slog.Logger
	verifier TokenVerifier
}

func NewAuthMiddleware(logger *slog.Logger, verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, verifier: verifier}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		operator, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.logger.Error("Token verification failed", "error", err)
			http.Error(w, "Token verification failed", http.StatusInternalServerError)
			return
		}
		if operator == nil {
			http.Error(w, "Invalid bearer token", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// OperatorFromContext returns the verified operator, or nil outside the
// auth middleware.
func OperatorFromContext(ctx context.Context) *clients.Operator {
	operator, _ := ctx.Value(operatorKey).(*clients.Operator)
	return operator
}
