package v1

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront-cart/internal/domain"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	report   *domain.MergeReport
	err      error
	token    string
	signOuts int
}

func (f *fakeSessions) SignIn(_ context.Context, token string) (domain.Identity, *domain.MergeReport, error) {
	f.token = token
	if f.err != nil {
		return domain.Anonymous, nil, f.err
	}
	return domain.Identity{UserID: "u1", Email: "u1@example.com"}, f.report, nil
}

func (f *fakeSessions) SignOut(context.Context) error {
	f.signOuts++
	return f.err
}

func newSessionMux(s SessionService) *http.ServeMux {
	h := NewSessionHandler(s)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/session", h.SignIn)
	mux.HandleFunc("DELETE /api/v1/session", h.SignOut)
	return mux
}

func TestSessionHandler_SignInReportsMerge(t *testing.T) {
	s := &fakeSessions{report: &domain.MergeReport{Attempted: 3, Failed: 1}}
	rec := serve(newSessionMux(s), http.MethodPost, "/api/v1/session", `{"accessToken":"tok"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", s.token)

	var resp signInResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.Identity.UserID)
	require.NotNil(t, resp.Merge)
	assert.Equal(t, 1, resp.Merge.Failed)
	assert.Equal(t, "Cart synced with 1 item(s) failed", resp.Message)
}

func TestSessionHandler_SignInWithoutMerge(t *testing.T) {
	s := &fakeSessions{}
	rec := serve(newSessionMux(s), http.MethodPost, "/api/v1/session", `{"accessToken":"tok"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "message")
}

func TestSessionHandler_SignInErrors(t *testing.T) {
	rec := serve(newSessionMux(&fakeSessions{}), http.MethodPost, "/api/v1/session", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s := &fakeSessions{err: errors.Join(domain.ErrInvalidInput, errors.New("token has no subject"))}
	rec = serve(newSessionMux(s), http.MethodPost, "/api/v1/session", `{"accessToken":"tok"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s = &fakeSessions{err: errors.New("disk full")}
	rec = serve(newSessionMux(s), http.MethodPost, "/api/v1/session", `{"accessToken":"tok"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSessionHandler_SignOut(t *testing.T) {
	s := &fakeSessions{}
	rec := serve(newSessionMux(s), http.MethodDelete, "/api/v1/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, s.signOuts)
}
