package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const operatorKey contextKey = "operator"

// AuthConfig controls how the acting operator is established.
type AuthConfig struct {
	// Secret verifies HS256 bearer tokens.
	Secret string
	// DevAuth trusts the X-Operator header when no token is sent, falling
	// back to DevOperator.
	DevAuth     bool
	DevOperator string
}

// OperatorClaims are the claims carried by operator tokens. Subject is the
// operator login.
type OperatorClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// OperatorAuthMiddleware validates Bearer tokens and injects the acting
// operator into the request context.
func OperatorAuthMiddleware(cfg AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			if authHeader == "" {
				if !cfg.DevAuth {
					logger.Warn("auth: missing token",
						zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr),
					)
					handleServiceError(w, &domain.ErrUnauthorized{Message: "Token de autenticación no proporcionado"}, logger)
					return
				}
				login := strings.TrimSpace(r.Header.Get("X-Operator"))
				if login == "" {
					login = cfg.DevOperator
				}
				op := domain.Operator{Login: login, Name: login, Active: true}
				next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				handleServiceError(w, &domain.ErrUnauthorized{Message: "Formato de token inválido"}, logger)
				return
			}

			claims := &OperatorClaims{}
			token, err := parser.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(*jwt.Token) (any, error) {
				return []byte(cfg.Secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				handleServiceError(w, &domain.ErrUnauthorized{Message: "Token inválido o expirado"}, logger)
				return
			}

			op := domain.Operator{Login: claims.Subject, Name: claims.Name, Active: true}
			if op.Name == "" {
				op.Name = op.Login
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
		})
	}
}

// WithOperator returns ctx carrying op.
func WithOperator(ctx context.Context, op domain.Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// OperatorFromContext extracts the authenticated operator from context.
func OperatorFromContext(ctx context.Context) (domain.Operator, bool) {
	op, ok := ctx.Value(operatorKey).(domain.Operator)
	return op, ok
}
