package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	profiles     map[uuid.UUID]*models.Profile
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		profiles:     make(map[uuid.UUID]*models.Profile),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if profile, ok := m.profiles[userID]; ok {
		return profile, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	if s, ok := m.sessions[refreshToken]; ok {
		return s, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func (m *mockAuthRepository) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	for token, s := range m.sessions {
		if s.ID == sessionID && s.UserID == userID {
			delete(m.sessions, token)
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (m *mockAuthRepository) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptRefreshToken string) error {
	for token, s := range m.sessions {
		if s.UserID == userID && token != exceptRefreshToken {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

// mockMediaLookup отдаёт файлы из map.
type mockMediaLookup map[uuid.UUID]*models.MediaFile

func (m mockMediaLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	if f, ok := m[id]; ok {
		return f, nil
	}
	return nil, repository.ErrMediaNotFound
}

func newTestAuthService(repo *mockAuthRepository, media MediaLookup) *AuthService {
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	return NewAuthService(repo, media, tokenManager)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepository()
	service := newTestAuthService(repo, nil)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		Email:    "Test@Example.com",
		Password: "Password123",
	}, SessionMeta{IP: "127.0.0.1"})
	if err != nil {
		t.Fatalf("register вернул ошибку: %v", err)
	}

	if res.User.ID == uuid.Nil {
		t.Fatalf("user ID должен быть установлен")
	}
	if res.User.Email != "test@example.com" {
		t.Fatalf("email должен быть нормализован, получили %q", res.User.Email)
	}
	if res.User.Role != models.RoleUser {
		t.Fatalf("ожидалась роль %q, получили %q", models.RoleUser, res.User.Role)
	}
	if res.Profile == nil || res.Profile.DisplayName == "" {
		t.Fatalf("профиль должен быть создан")
	}
	if res.Profile.DefaultCurrency != "USD" {
		t.Fatalf("валюта по умолчанию должна быть USD, получили %q", res.Profile.DefaultCurrency)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("ожидалась одна сессия, получили %d", len(repo.sessions))
	}

	loginRes, err := service.Login(ctx, LoginInput{
		Email:    "test@example.com",
		Password: "Password123",
	}, SessionMeta{})
	if err != nil {
		t.Fatalf("login вернул ошибку: %v", err)
	}
	if loginRes.TokenPair.AccessToken == "" {
		t.Fatalf("ожидался access токен")
	}

	userID, role, err := service.ParseAccess(loginRes.TokenPair.AccessToken)
	if err != nil {
		t.Fatalf("access токен не прошёл проверку: %v", err)
	}
	if userID != res.User.ID || role != models.RoleUser {
		t.Fatalf("неожиданные клеймы: %s %s", userID, role)
	}
}

func TestAuthService_RegisterRejectsDuplicateAndWeakPassword(t *testing.T) {
	repo := newMockAuthRepository()
	service := newTestAuthService(repo, nil)
	ctx := context.Background()

	if _, err := service.Register(ctx, RegisterInput{Email: "a@example.com", Password: "short"}, SessionMeta{}); !apperror.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получили %v", err)
	}

	if _, err := service.Register(ctx, RegisterInput{Email: "a@example.com", Password: "Password123"}, SessionMeta{}); err != nil {
		t.Fatalf("register вернул ошибку: %v", err)
	}
	_, err := service.Register(ctx, RegisterInput{Email: "a@example.com", Password: "Password123"}, SessionMeta{})
	if !apperror.HasCode(err, apperror.ErrCodeConflict) {
		t.Fatalf("ожидался конфликт, получили %v", err)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepository()
	service := newTestAuthService(repo, nil)
	ctx := context.Background()

	if _, err := service.Register(ctx, RegisterInput{Email: "b@example.com", Password: "Password123"}, SessionMeta{}); err != nil {
		t.Fatalf("register вернул ошибку: %v", err)
	}

	_, err := service.Login(ctx, LoginInput{Email: "b@example.com", Password: "Wrong12345"}, SessionMeta{})
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("ожидалась ErrInvalidCredentials, получили %v", err)
	}

	_, err = service.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "Password123"}, SessionMeta{})
	if !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("для неизвестного email ожидалась ErrInvalidCredentials, получили %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	service := NewAuthService(repo, nil, tokenManager)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	tokenPair, refreshExp, err := tokenManager.GeneratePair(user)
	if err != nil {
		t.Fatalf("не удалось сгенерировать токены: %v", err)
	}
	if !refreshExp.After(time.Now()) {
		t.Fatalf("refresh должен истекать в будущем")
	}

	repo.sessions[tokenPair.RefreshToken] = &models.Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	newPair, err := service.Refresh(ctx, tokenPair.RefreshToken, SessionMeta{})
	if err != nil {
		t.Fatalf("refresh вернул ошибку: %v", err)
	}
	if newPair.RefreshToken == tokenPair.RefreshToken {
		t.Fatalf("ожидался новый refresh токен")
	}
	if _, ok := repo.sessions[tokenPair.RefreshToken]; ok {
		t.Fatalf("старая сессия должна быть удалена")
	}

	// повторное использование старого токена запрещено
	if _, err := service.Refresh(ctx, tokenPair.RefreshToken, SessionMeta{}); !apperror.HasCode(err, apperror.ErrCodeUnauthorized) {
		t.Fatalf("ожидалась ошибка авторизации, получили %v", err)
	}
}

func TestAuthService_RefreshRejectsAccessToken(t *testing.T) {
	repo := newMockAuthRepository()
	service := newTestAuthService(repo, nil)
	ctx := context.Background()

	res, err := service.Register(ctx, RegisterInput{Email: "c@example.com", Password: "Password123"}, SessionMeta{})
	if err != nil {
		t.Fatalf("register вернул ошибку: %v", err)
	}

	if _, err := service.Refresh(ctx, res.TokenPair.AccessToken, SessionMeta{}); !apperror.HasCode(err, apperror.ErrCodeUnauthorized) {
		t.Fatalf("access токен не должен подходить для refresh, получили %v", err)
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	repo := newMockAuthRepository()
	ownerID := uuid.New()
	strangerID := uuid.New()
	ownLogo := uuid.New()
	foreignLogo := uuid.New()
	media := mockMediaLookup{
		ownLogo:     {ID: ownLogo, UserID: &ownerID},
		foreignLogo: {ID: foreignLogo, UserID: &strangerID},
	}
	service := newTestAuthService(repo, media)
	ctx := context.Background()

	repo.usersByID[ownerID] = &models.User{ID: ownerID, Username: "owner", IsActive: true}

	company := "  Студия Север  "
	currency := "eur"
	profile, err := service.UpdateProfile(ctx, ownerID, ProfileInput{
		CompanyName:     &company,
		DefaultCurrency: &currency,
		LogoMediaID:     &ownLogo,
	})
	if err != nil {
		t.Fatalf("update profile вернул ошибку: %v", err)
	}
	if derefString(profile.CompanyName) != "Студия Север" {
		t.Fatalf("название компании должно быть обрезано, получили %q", derefString(profile.CompanyName))
	}
	if profile.DefaultCurrency != "EUR" {
		t.Fatalf("ожидалась EUR, получили %q", profile.DefaultCurrency)
	}

	if _, err := service.UpdateProfile(ctx, ownerID, ProfileInput{LogoMediaID: &foreignLogo}); !errors.Is(err, apperror.ErrMediaNotFound) {
		t.Fatalf("чужой логотип должен давать 404, получили %v", err)
	}

	bad := "ftp://example.com"
	if _, err := service.UpdateProfile(ctx, ownerID, ProfileInput{Website: &bad}); !apperror.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации сайта, получили %v", err)
	}
}
