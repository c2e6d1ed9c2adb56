package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/constants"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/token"
	"github.com/yukikurage/project-management-api/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrPasswordTooShort       = errors.New("password too short")
	ErrUserNotFound           = errors.New("user not found")
	ErrFailedToHashPassword   = errors.New("failed to hash password")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrFederatedLoginDisabled = errors.New("federated login is not configured")
)

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo  repository.UserRepository
	issuer    *token.Issuer
	federated FederatedProvider
}

// NewAuthService creates a new AuthService. federated may be nil when no
// external identity provider is configured.
func NewAuthService(userRepo repository.UserRepository, issuer *token.Issuer, federated FederatedProvider) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		issuer:    issuer,
		federated: federated,
	}
}

// SignupInput represents the required information to create a new user.
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// Session is a verified user together with freshly issued credentials.
type Session struct {
	User   *models.User
	Tokens token.Pair
}

// Signup creates a new user. The user starts without an organization.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	email, err := parseEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}
	hash := string(hashedPassword)

	name := utils.SanitizeText(input.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		Role:         authz.RoleGuest,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.newSession(user)
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and issues a credential pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, utils.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	// federated-only accounts have no password
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.newSession(user)
}

// Refresh exchanges a refresh credential for a new pair. The user is read
// again so the new access credential carries the current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.issuer.Parse(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return s.newSession(user)
}

// GoogleAuthURL returns the consent page the client redirects to. state is
// echoed back with the authorization code.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.federated == nil {
		return "", ErrFederatedLoginDisabled
	}
	return s.federated.AuthCodeURL(state), nil
}

// LoginWithGoogle exchanges an authorization code and signs the user in,
// linking or creating the local account as needed.
func (s *AuthService) LoginWithGoogle(ctx context.Context, code string) (*Session, error) {
	if s.federated == nil {
		return nil, ErrFederatedLoginDisabled
	}

	identity, err := s.federated.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByGoogleID(ctx, identity.Subject)
	if err == nil {
		return s.newSession(user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	email := utils.NormalizeEmail(identity.Email)
	user, err = s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !identity.EmailVerified {
			return nil, ErrInvalidCredentials
		}
		if err := s.userRepo.Update(ctx, user.ID, map[string]interface{}{"google_id": identity.Subject}); err != nil {
			return nil, fmt.Errorf("failed to link account: %w", err)
		}
		user.GoogleID = &identity.Subject
	case errors.Is(err, gorm.ErrRecordNotFound):
		name := utils.SanitizeText(identity.Name)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		user = &models.User{
			Email:    email,
			Name:     name,
			GoogleID: &identity.Subject,
			Role:     authz.RoleGuest,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return s.newSession(user)
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// Verify checks an access credential and returns the principal it
// asserts.
func (s *AuthService) Verify(accessToken string) (*authz.Principal, error) {
	claims, err := s.issuer.Parse(accessToken, token.TypeAccess)
	if err != nil {
		return nil, err
	}
	p := claims.Principal()
	return &p, nil
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	pair, err := s.issuer.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

func parseEmail(raw string) (string, error) {
	email := utils.NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
