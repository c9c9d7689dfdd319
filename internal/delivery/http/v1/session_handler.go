package v1

import (
	"context"
	"errors"
	"net/http"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/logger"
	"storefront-cart/pkg/utils"

	"github.com/goccy/go-json"
)

// SessionService turns identity signals from the storefront into engine transitions.
type SessionService interface {
	SignIn(ctx context.Context, accessToken string) (domain.Identity, *domain.MergeReport, error)
	SignOut(ctx context.Context) error
}

type SessionHandler struct {
	sessions SessionService
}

func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type signInReq struct {
	AccessToken string `json:"accessToken"`
}

type signInResp struct {
	Identity domain.Identity     `json:"identity"`
	Merge    *domain.MergeReport `json:"merge,omitempty"`
	Message  string              `json:"message,omitempty"`
}

func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessToken == "" {
		utils.WriteError(w, http.StatusBadRequest, "Access token required")
		return
	}

	id, report, err := h.sessions.SignIn(r.Context(), req.AccessToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			utils.WriteError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}
		logger.WithContext(r.Context()).Error().Err(err).Msg("Sign in failed")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	resp := signInResp{Identity: id, Merge: report}
	if report != nil && report.Attempted > 0 {
		resp.Message = domain.MergeMessage(*report)
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Msg("Sign out failed")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
