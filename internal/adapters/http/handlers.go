package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/communityforge/door-access-service/internal/application"
	"github.com/communityforge/door-access-service/internal/ports"
)

// Handler is the HTTP adapter entrypoint for door access use-cases.
type Handler struct {
	service  *application.Service
	verifier ports.MemberTokenVerifier
}

func NewHandler(service *application.Service, verifier ports.MemberTokenVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

// memberAuthMiddleware authenticates the member's bearer token and stashes
// the claims on the request context.
func (h *Handler) memberAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		claims, err := h.verifier.Verify(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "member_auth", err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyMemberClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deviceAuthMiddleware resolves the device token to a registered, enabled
// device. Devices send either a Bearer token or X-Device-Token.
func (h *Handler) deviceAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("X-Device-Token"))
		if raw == "" {
			bearer, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing device token")
				return
			}
			raw = bearer
		}
		device, err := h.service.AuthenticateDevice(r.Context(), raw, readIP(r))
		if err != nil {
			writeMappedError(r.Context(), w, "device_auth", err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyDevice, device)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func readIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, code, msg, err)
	writeError(w, http.StatusBadRequest, code, msg)
}
