package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crmhub/internal/auth"
	"crmhub/internal/models"
	"crmhub/internal/repositories/repotest"
	"crmhub/internal/session"
)

type fakeEmail struct {
	welcomed []string
	closed   []string
	err      error
}

func (f *fakeEmail) SendWelcomeEmail(email, _ string) error {
	f.welcomed = append(f.welcomed, email)
	return f.err
}

func (f *fakeEmail) SendDealClosedEmail(email string, d models.Deal) error {
	f.closed = append(f.closed, email+":"+d.ID)
	return f.err
}

type authFixture struct {
	db    *repotest.DB
	mr    *miniredis.Miniredis
	email *fakeEmail
	svc   *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := session.NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	db := repotest.New()
	email := &fakeEmail{}
	svc := NewAuthService(
		db.Users(), db.Profiles(),
		session.NewStore(client, time.Hour), session.NewBus(client),
		auth.NewTokenManager("test-secret-0123456789", 15*time.Minute),
		email, zap.NewNop(),
	)
	return &authFixture{db: db, mr: mr, email: email, svc: svc}
}

func (f *authFixture) signUp(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := f.svc.SignUp(context.Background(), models.SignUpRequest{Email: email, Password: "hunter22", FullName: "Sam Lee"})
	require.NoError(t, err)
	return res
}

func TestSignUpCreatesUserProfileAndSession(t *testing.T) {
	f := newAuthFixture(t)

	res := f.signUp(t, "  Sam@Example.com ")
	assert.Equal(t, "sam@example.com", res.User.Email)
	assert.NotEqual(t, "hunter22", res.User.PasswordHash)
	require.NotNil(t, res.Profile)
	assert.Equal(t, "Sam Lee", *res.Profile.FullName)
	assert.Equal(t, "UTC", res.Profile.Timezone)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.True(t, f.mr.Exists("crmhub:session:"+res.Tokens.SessionID))
	assert.Equal(t, []string{"sam@example.com"}, f.email.welcomed)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.signUp(t, "sam@example.com")

	_, err := f.svc.SignUp(context.Background(), models.SignUpRequest{Email: "SAM@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.SignUp(context.Background(), models.SignUpRequest{Email: "x@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSignUpSurvivesWelcomeEmailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.email.err = errors.New("smtp down")

	res := f.signUp(t, "sam@example.com")
	assert.NotEmpty(t, res.Tokens.AccessToken)
}

func TestSignIn(t *testing.T) {
	f := newAuthFixture(t)
	f.signUp(t, "sam@example.com")
	ctx := context.Background()

	res, err := f.svc.SignIn(ctx, "Sam@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)

	_, err = f.svc.SignIn(ctx, "sam@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.SignIn(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateAndSignOut(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signUp(t, "sam@example.com")
	ctx := context.Background()

	id, err := f.svc.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id.UserID)
	assert.Equal(t, res.Tokens.SessionID, id.SessionID)
	require.NotNil(t, id.Profile)

	require.NoError(t, f.svc.SignOut(ctx, id))
	_, err = f.svc.Authenticate(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestCurrentSessionWithoutProfile(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signUp(t, "sam@example.com")
	f.db.DeleteProfile(res.User.ID)

	id, err := f.svc.CurrentSession(context.Background(), res.Tokens.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id.UserID)
	assert.Nil(t, id.Profile)
}

func TestCurrentSessionDatabaseFailure(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signUp(t, "sam@example.com")
	f.db.FailWith(errors.New("db down"))

	_, err := f.svc.CurrentSession(context.Background(), res.Tokens.SessionID)
	assert.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signUp(t, "sam@example.com")
	ctx := context.Background()

	tokens, err := f.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.Tokens.SessionID, tokens.SessionID)
	assert.NotEqual(t, res.Tokens.RefreshToken, tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "old refresh token is spent")

	_, err = f.svc.Authenticate(ctx, tokens.AccessToken)
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signUp(t, "sam@example.com")
	ctx := context.Background()
	id := &session.Identity{UserID: res.User.ID, SessionID: res.Tokens.SessionID}

	prefs := json.RawMessage(`{"email_deals":true}`)
	p, err := f.svc.UpdateProfile(ctx, id, models.ProfileUpdate{
		JobTitle:                ptr("AE"),
		Timezone:                ptr("Europe/Berlin"),
		NotificationPreferences: &prefs,
	})
	require.NoError(t, err)
	assert.Equal(t, "AE", *p.JobTitle)
	assert.Equal(t, "Europe/Berlin", p.Timezone)
	assert.True(t, p.WantsEmail("email_deals"))

	_, err = f.svc.UpdateProfile(ctx, id, models.ProfileUpdate{Timezone: ptr("Mars/Olympus")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := json.RawMessage(`[1,2]`)
	_, err = f.svc.UpdateProfile(ctx, id, models.ProfileUpdate{NotificationPreferences: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubscribeReceivesOwnEventsOnly(t *testing.T) {
	f := newAuthFixture(t)
	sam := f.signUp(t, "sam@example.com")
	kim := f.signUp(t, "kim@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := f.svc.Subscribe(ctx, sam.User.ID)
	require.NoError(t, err)

	kimID := &session.Identity{UserID: kim.User.ID, SessionID: kim.Tokens.SessionID}
	require.NoError(t, f.svc.SignOut(context.Background(), kimID))
	samID := &session.Identity{UserID: sam.User.ID, SessionID: sam.Tokens.SessionID}
	require.NoError(t, f.svc.SignOut(context.Background(), samID))

	select {
	case ev := <-events:
		assert.Equal(t, session.SignedOut, ev.Type)
		assert.Equal(t, sam.User.ID, ev.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
