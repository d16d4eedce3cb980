package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"crmhub/internal/auth"
	"crmhub/internal/models"
	"crmhub/internal/repositories"
	"crmhub/internal/session"
	"crmhub/internal/utils"
)

type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionID    string    `json:"session_id"`
}

// AuthResult is what sign-in and sign-up hand back to the client.
type AuthResult struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
	Tokens  Tokens          `json:"tokens"`
}

type AuthService struct {
	users    repositories.UserRepository
	profiles repositories.ProfileRepository
	store    *session.Store
	bus      *session.Bus
	tokens   *auth.TokenManager
	email    EmailService
	log      *zap.Logger
}

func NewAuthService(
	users repositories.UserRepository,
	profiles repositories.ProfileRepository,
	store *session.Store,
	bus *session.Bus,
	tokens *auth.TokenManager,
	email EmailService,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		profiles: profiles,
		store:    store,
		bus:      bus,
		tokens:   tokens,
		email:    email,
		log:      log,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || len(req.Password) < 6 {
		return nil, invalid("email and a password of at least 6 characters are required")
	}
	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	profile := &models.Profile{ID: user.ID, Email: email, FullName: optional(&req.FullName)}
	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info("[auth][signup] user created", zap.String("user_id", user.ID))

	if s.email != nil {
		if err := s.email.SendWelcomeEmail(email, req.FullName); err != nil {
			// warn but do not fail creation
			s.log.Warn("[auth][signup] welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return s.startSession(ctx, user)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		s.log.Info("[auth][login] unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info("[auth][login] bcrypt mismatch", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	rt, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	rec := session.Record{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Email:       user.Email,
		RefreshHash: utils.HashToken(rt),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	access, exp, err := s.tokens.Issue(user.ID, rec.ID, user.Email)
	if err != nil {
		return nil, err
	}
	profile, err := s.loadProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, session.SignedIn, user.ID, rec.ID)
	s.log.Info("[auth][login] success", zap.String("user_id", user.ID), zap.String("session_id", rec.ID))
	return &AuthResult{
		User:    user,
		Profile: profile,
		Tokens:  Tokens{AccessToken: access, RefreshToken: rt, ExpiresAt: exp, SessionID: rec.ID},
	}, nil
}

func (s *AuthService) SignOut(ctx context.Context, id *session.Identity) error {
	if err := s.store.Delete(ctx, id.SessionID); err != nil {
		return err
	}
	s.publish(ctx, session.SignedOut, id.UserID, id.SessionID)
	return nil
}

// Refresh rotates the refresh token and issues a new access token for the
// same session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	rec, err := s.store.LookupRefresh(ctx, utils.HashToken(strings.TrimSpace(refreshToken)))
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	newRT, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	if err := s.store.Rotate(ctx, rec, utils.HashToken(newRT)); err != nil {
		return nil, err
	}
	access, exp, err := s.tokens.Issue(rec.UserID, rec.ID, rec.Email)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, session.TokenRefreshed, rec.UserID, rec.ID)
	return &Tokens{AccessToken: access, RefreshToken: newRT, ExpiresAt: exp, SessionID: rec.ID}, nil
}

// Authenticate resolves a bearer token into the caller's identity. The
// token alone is not enough: its session must still be alive.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*session.Identity, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	id, err := s.CurrentSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if id.UserID != claims.UserID {
		return nil, auth.ErrInvalidToken
	}
	return id, nil
}

// CurrentSession returns the identity behind a live session. A user
// without a profile row gets a nil Profile, not an error.
func (s *AuthService) CurrentSession(ctx context.Context, sessionID string) (*session.Identity, error) {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	profile, err := s.loadProfile(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	return &session.Identity{UserID: rec.UserID, Email: rec.Email, SessionID: rec.ID, Profile: profile}, nil
}

func (s *AuthService) loadProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, id *session.Identity, in models.ProfileUpdate) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	setOptional(&p.FullName, in.FullName)
	setOptional(&p.AvatarURL, in.AvatarURL)
	setOptional(&p.Phone, in.Phone)
	setOptional(&p.JobTitle, in.JobTitle)
	setOptional(&p.Department, in.Department)
	if in.Timezone != nil {
		tz := strings.TrimSpace(*in.Timezone)
		if _, err := time.LoadLocation(tz); err != nil || tz == "" {
			return nil, invalid("unknown timezone %q", tz)
		}
		p.Timezone = tz
	}
	if in.NotificationPreferences != nil {
		var prefs map[string]bool
		if err := json.Unmarshal(*in.NotificationPreferences, &prefs); err != nil || prefs == nil {
			return nil, invalid("notification_preferences must be an object of booleans")
		}
		p.NotificationPreferences = *in.NotificationPreferences
	}

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	s.publish(ctx, session.ProfileUpdated, id.UserID, id.SessionID)
	return p, nil
}

// Subscribe streams the auth events of one user until ctx ends.
func (s *AuthService) Subscribe(ctx context.Context, userID string) (<-chan session.Event, error) {
	all, err := s.bus.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan session.Event)
	go func() {
		defer close(out)
		for ev := range all {
			if ev.UserID != userID {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *AuthService) publish(ctx context.Context, t session.EventType, userID, sessionID string) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, session.Event{Type: t, UserID: userID, SessionID: sessionID})
	if err != nil {
		s.log.Warn("[auth][event] publish failed", zap.String("type", string(t)), zap.Error(err))
	}
}
