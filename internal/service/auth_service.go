package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error
	DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptRefreshToken string) error
}

var (
	errEmailTaken      = apperror.New(apperror.ErrCodeConflict, "email уже зарегистрирован")
	errAccountDisabled = apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	errInvalidRefresh  = apperror.New(apperror.ErrCodeUnauthorized, "refresh токен невалиден")
)

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo         AuthRepository
	media        MediaLookup
	tokenManager *TokenManager
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
	CompanyName string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// SessionMeta сведения о клиенте для новой сессии.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// ProfileInput изменения реквизитов компании.
type ProfileInput struct {
	DisplayName     *string
	CompanyName     *string
	Website         *string
	Phone           *string
	Address         *string
	LogoMediaID     *uuid.UUID
	DefaultCurrency *string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User
	Profile   *models.Profile
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, media MediaLookup, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		media:        media,
		tokenManager: tokenManager,
	}
}

// Register создаёт нового пользователя и профиль.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta SessionMeta) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = deriveUsername(email)
	} else if err := validation.ValidateUsername(username); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, errEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.Internal(err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("auth service: не удалось захешировать пароль: %w", err))
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(passHash),
		Role:         models.RoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperror.Internal(err)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}

	profile := &models.Profile{
		UserID:          user.ID,
		DisplayName:     displayName,
		CompanyName:     optionalString(&in.CompanyName),
		DefaultCurrency: "USD",
	}
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, apperror.Internal(err)
	}

	tokenPair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:      user,
		Profile:   profile,
		TokenPair: tokenPair,
	}, nil
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta SessionMeta) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Internal(err)
	}

	if !user.IsActive {
		return nil, errAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		// не прерываем вход
		logger.Log.WithFields(logrus.Fields{
			"user_id": user.ID,
		}).WithError(err).Warn("auth service: не удалось обновить last_login_at")
	}

	tokenPair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		profile = nil
	}

	return &AuthResult{
		User:      user,
		Profile:   profile,
		TokenPair: tokenPair,
	}, nil
}

// Refresh выпускает новую пару токенов и удаляет старую сессию.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta SessionMeta) (*TokenPair, error) {
	userID, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, errInvalidRefresh
	}

	session, err := s.repo.GetSessionByToken(ctx, oldToken)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, errInvalidRefresh
		}
		return nil, apperror.Internal(err)
	}
	if session.UserID != userID {
		return nil, errInvalidRefresh
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrUserNotFound, errInvalidRefresh)
	}
	if !user.IsActive {
		return nil, errAccountDisabled
	}

	if err := s.repo.DeleteSession(ctx, oldToken); err != nil {
		return nil, apperror.Internal(err)
	}

	return s.openSession(ctx, user, meta)
}

// Logout удаляет сессию по refresh токену.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// ListSessions возвращает список активных сессий пользователя.
func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return sessions, nil
}

// DeleteSession удаляет сессию по идентификатору.
func (s *AuthService) DeleteSession(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	err := s.repo.DeleteSessionByID(ctx, sessionID, userID)
	return mapRepoErr(err, repository.ErrSessionNotFound, apperror.New(apperror.ErrCodeNotFound, "сессия не найдена"))
}

// DeleteAllSessionsExcept удаляет все сессии пользователя кроме текущей.
func (s *AuthService) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, currentRefreshToken string) error {
	if err := s.repo.DeleteAllSessionsExcept(ctx, userID, currentRefreshToken); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// GetProfile возвращает пользователя и его профиль.
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, *models.Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, mapRepoErr(err, repository.ErrUserNotFound, apperror.ErrUserNotFound)
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, apperror.Internal(err)
		}
		profile = &models.Profile{UserID: userID, DisplayName: user.Username, DefaultCurrency: "USD"}
	}
	return user, profile, nil
}

// UpdateProfile меняет реквизиты компании.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.Profile, error) {
	_, profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if err := validation.ValidateDisplayName(name); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		profile.DisplayName = name
	}
	if in.CompanyName != nil {
		if err := validation.ValidateOptionalText("название компании", in.CompanyName, validation.MaxCompanyFieldLength); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		profile.CompanyName = optionalString(in.CompanyName)
	}
	if in.Website != nil {
		if err := validation.ValidateOptionalURL("сайт", in.Website); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		profile.Website = optionalString(in.Website)
	}
	if in.Phone != nil {
		if err := validation.ValidateOptionalText("телефон", in.Phone, 32); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		profile.Phone = optionalString(in.Phone)
	}
	if in.Address != nil {
		if err := validation.ValidateOptionalText("адрес", in.Address, validation.MaxCompanyFieldLength); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		profile.Address = optionalString(in.Address)
	}
	if in.DefaultCurrency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*in.DefaultCurrency))
		if err := validation.ValidateCurrency(currency); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		profile.DefaultCurrency = currency
	}
	if in.LogoMediaID != nil {
		if err := ensureOwnedMedia(ctx, s.media, in.LogoMediaID, userID); err != nil {
			return nil, err
		}
		profile.LogoMediaID = in.LogoMediaID
	}

	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, apperror.Internal(err)
	}
	return profile, nil
}

// ParseAccess проверяет access токен, используется middleware и WebSocket.
func (s *AuthService) ParseAccess(token string) (uuid.UUID, string, error) {
	return s.tokenManager.ParseAccess(token)
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, meta SessionMeta) (*TokenPair, error) {
	tokenPair, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	if meta.UserAgent != "" {
		ua := meta.UserAgent
		session.UserAgent = &ua
	}
	if meta.IP != "" {
		ip := meta.IP
		session.IPAddress = &ip
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, apperror.Internal(err)
	}
	return tokenPair, nil
}

// deriveUsername формирует username из email.
func deriveUsername(email string) string {
	name := strings.Split(email, "@")[0]
	name = strings.NewReplacer(".", "_", "+", "_", "-", "_").Replace(name)
	name = strings.ToLower(name)
	if len(name) < 3 {
		name = "user_" + uuid.NewString()[:6]
	}
	if len(name) > 30 {
		name = name[:30]
	}
	return name
}
