package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Sushil7090/moodle-backend/internal/models"
	"github.com/Sushil7090/moodle-backend/internal/repository"
	appErrors "github.com/Sushil7090/moodle-backend/pkg/errors"
)

type fakeAuthenticator struct {
	loginFn func(ctx context.Context, username, password string) (string, error)
	calls   int
}

func (f *fakeAuthenticator) Login(ctx context.Context, username, password string) (string, error) {
	f.calls++
	if f.loginFn == nil {
		return "ws-token", nil
	}
	return f.loginFn(ctx, username, password)
}

type fakeTokenStore struct {
	tokens map[string]*models.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	copied := *token
	f.tokens[token.Token] = &copied
	return nil
}

func (f *fakeTokenStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := f.tokens[token]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	return stored, nil
}

func (f *fakeTokenStore) Revoke(ctx context.Context, token string) error {
	delete(f.tokens, token)
	return nil
}

func newAuthService(moodle *fakeAuthenticator, store *fakeTokenStore) *AuthService {
	return NewAuthService(moodle, store, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "moodle-backend",
	})
}

func TestLoginAgainstMoodle(t *testing.T) {
	moodle := &fakeAuthenticator{}
	store := newFakeTokenStore()
	svc := newAuthService(moodle, store)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "asha", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 1, moodle.calls)
	assert.Equal(t, models.AuthSourceMoodle, resp.User.Source)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Len(t, store.tokens, 1)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "asha", claims.Username)
	assert.Equal(t, models.AuthSourceMoodle, claims.Source)
}

func TestLoginInvalidCredentials(t *testing.T) {
	moodle := &fakeAuthenticator{
		loginFn: func(ctx context.Context, username, password string) (string, error) {
			return "", appErrors.ErrInvalidCredentials
		},
	}
	svc := newAuthService(moodle, newFakeTokenStore())

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "asha", Password: "wrong"})
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, typed.Code)
}

func TestLoginValidation(t *testing.T) {
	svc := newAuthService(&fakeAuthenticator{}, newFakeTokenStore())

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "asha"})
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}

func TestLoginLocalAdminBypassesMoodle(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	moodle := &fakeAuthenticator{}
	store := newFakeTokenStore()
	svc := NewAuthService(moodle, store, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		AdminUsername:      "admin",
		AdminPasswordHash:  string(hash),
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, models.AuthSourceLocal, resp.User.Source)
	assert.Equal(t, 0, moodle.calls, "local admin never reaches upstream")

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "nope"})
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, typed.Code)
	assert.Equal(t, 0, moodle.calls)
}

func TestRefreshTokenRotates(t *testing.T) {
	store := newFakeTokenStore()
	svc := newAuthService(&fakeAuthenticator{}, store)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "asha", Password: "secret"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked: replaying it fails.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, typed.Code)
}

func TestRefreshTokenUnknown(t *testing.T) {
	svc := newAuthService(&fakeAuthenticator{}, newFakeTokenStore())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "missing"})
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, typed.Code)
}

func TestLogoutEnforcesOwnership(t *testing.T) {
	store := newFakeTokenStore()
	svc := newAuthService(&fakeAuthenticator{}, store)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "asha", Password: "secret"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrForbidden.Code, typed.Code)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "asha"))
	assert.Empty(t, store.tokens)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := newAuthService(&fakeAuthenticator{}, newFakeTokenStore())

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "asha", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, typed.Code)
}
