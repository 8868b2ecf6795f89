package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustline/internal/jwttoken"
	"trustline/pkg/domain"
	"trustline/pkg/platform/httputil"
	"trustline/pkg/requestcontext"
)

// AuthHandler mints bearer tokens for an address. There is no credential
// check here; caller authentication belongs to the host deployment, and this
// endpoint stands in for it so the API is usable end to end.
type AuthHandler struct {
	tokens   *jwttoken.Service
	lifetime time.Duration
	logger   *slog.Logger
}

func NewAuthHandler(tokens *jwttoken.Service, lifetime time.Duration, logger *slog.Logger) *AuthHandler {
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &AuthHandler{tokens: tokens, lifetime: lifetime, logger: logger}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/token", h.handleToken)
}

type tokenRequest struct {
	Address string `json:"address"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *AuthHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[tokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	addr, err := domain.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(addr, h.lifetime)
	if err != nil {
		h.logger.ErrorContext(ctx, "token generation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.lifetime.Seconds()),
	})
}
