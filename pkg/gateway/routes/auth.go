package routes

import (
	"crypto/hmac"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
	gatewayauth "github.com/carescope-ai/platform/pkg/gateway/auth"
	"github.com/carescope-ai/platform/pkg/gateway/middleware"
)

// AuthHandler exchanges the shared gateway API key for short-lived bearer
// tokens. There is no user store; callers are service accounts identified
// by whatever subject they request.
type AuthHandler struct {
	tokenSigner *gatewayauth.JWTManager
	apiKey      string
}

func NewAuthHandler(tokenSigner *gatewayauth.JWTManager, apiKey string) *AuthHandler {
	return &AuthHandler{tokenSigner: tokenSigner, apiKey: apiKey}
}

func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/token", h.handleToken).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(h.tokenSigner))
	protected.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
}

func (h *AuthHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if h.apiKey == "" {
		http.Error(w, "token issuance disabled", http.StatusServiceUnavailable)
		return
	}
	if !hmac.Equal([]byte(req.APIKey), []byte(h.apiKey)) {
		logger.Log.WithField("subject", req.Subject).Warn("token request with invalid api key")
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "service-account"
	}
	role := req.Role
	if role == "" {
		role = "analyst"
	}

	token, err := h.tokenSigner.IssueToken(subject, role)
	if err != nil {
		logger.Log.WithError(err).Error("failed issuing token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, models.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.tokenSigner.TTL().Seconds()),
	})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	respondJSON(w, http.StatusOK, caller)
}
