package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmlarsen/flock/internal/domain"
)

const (
	// DefaultMinPasswordLength is the password policy floor when no
	// override is configured.
	DefaultMinPasswordLength = 6

	maxNameLength  = 50
	maxEmailLength = 255

	// resetValidity bounds how long a password-reset token is honored.
	resetValidity = 2 * time.Hour

	// tokenBytes gives 256 bits of entropy per issued token.
	tokenBytes = 32
)

// TokenKind identifies which digest on the user a secret is verified
// against. Every kind uses the same bcrypt scheme.
type TokenKind int

const (
	TokenPassword TokenKind = iota
	TokenRemember
	TokenActivation
	TokenReset
)

// AuthService owns credentials: registration, password verification, and
// the lifecycle of remember, activation, and reset tokens.
type AuthService struct {
	users       domain.UserRepository
	sessions    domain.SessionStore
	bcryptCost  int
	minPassword int
}

// NewAuthService creates a new AuthService. minPassword <= 0 selects the
// default password policy.
func NewAuthService(users domain.UserRepository, sessions domain.SessionStore, bcryptCost, minPassword int) *AuthService {
	if minPassword <= 0 {
		minPassword = DefaultMinPasswordLength
	}
	return &AuthService{
		users:       users,
		sessions:    sessions,
		bcryptCost:  bcryptCost,
		minPassword: minPassword,
	}
}

// NormalizeEmail lower-cases and trims an email address. Applied at every
// point where an email enters the system, before storage and before every
// comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Digest returns the bcrypt hash of a secret. The same scheme is used for
// passwords, remember tokens, activation tokens, and reset tokens.
func (s *AuthService) Digest(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// NewToken returns a cryptographically random, URL-safe token.
func (s *AuthService) NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// VerifyToken checks a plaintext secret against the digest of the given
// kind on the user. A missing digest always fails; it never errors.
func VerifyToken(user *domain.User, kind TokenKind, token string) bool {
	var digest string
	switch kind {
	case TokenPassword:
		digest = user.PasswordHash
	case TokenRemember:
		digest = user.RememberDigest
	case TokenActivation:
		digest = user.ActivationDigest
	case TokenReset:
		digest = user.ResetDigest
	}
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(token)) == nil
}

// Register creates a new, deactivated user account after validating inputs.
// It returns the user and the plaintext activation token for the mailer;
// only the token's digest is stored.
func (s *AuthService) Register(ctx context.Context, name, email, password, confirmation string) (*domain.User, string, error) {
	email = NormalizeEmail(email)

	if err := validateName(name); err != nil {
		return nil, "", err
	}
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if err := s.validatePassword(password, confirmation); err != nil {
		return nil, "", err
	}

	passwordHash, err := s.Digest(password)
	if err != nil {
		return nil, "", err
	}

	activationToken, err := s.NewToken()
	if err != nil {
		return nil, "", err
	}
	activationDigest, err := s.Digest(activationToken)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		Name:             strings.TrimSpace(name),
		Email:            email,
		PasswordHash:     passwordHash,
		ActivationDigest: activationDigest,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	return user, activationToken, nil
}

// Authenticate verifies an email/password pair. Unknown email and wrong
// password both return ErrUnauthorized, so the caller cannot distinguish
// them. Activation state is not checked here; callers gate on it.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !VerifyToken(user, TokenPassword, password) {
		return nil, domain.ErrUnauthorized
	}

	return user, nil
}

// Activate marks the account for the given email as activated when the
// activation token verifies. Already-activated accounts and bad tokens get
// the same generic failure.
func (s *AuthService) Activate(ctx context.Context, email, token string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.Activated || !VerifyToken(user, TokenActivation, token) {
		return nil, domain.ErrUnauthorized
	}

	now := time.Now().UTC()
	user.Activated = true
	user.ActivatedAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("activate user: %w", err)
	}

	return user, nil
}

// StartReset issues a password-reset token for the given email, storing its
// digest and timestamp on the user. Returns the user and the plaintext
// token for the mailer.
func (s *AuthService) StartReset(ctx context.Context, email string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	token, err := s.NewToken()
	if err != nil {
		return nil, "", err
	}
	digest, err := s.Digest(token)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	user.ResetDigest = digest
	user.ResetSentAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("store reset digest: %w", err)
	}

	return user, token, nil
}

// ResetPassword completes a password reset. The token must verify, the
// reset must be fresh, and the new password must satisfy the policy. On
// success the reset digest is cleared and every live session for the user
// is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, password, confirmation string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.Activated || !VerifyToken(user, TokenReset, token) {
		return nil, domain.ErrUnauthorized
	}
	if user.ResetSentAt == nil || time.Since(*user.ResetSentAt) > resetValidity {
		return nil, domain.ErrResetExpired
	}
	if err := s.validatePassword(password, confirmation); err != nil {
		return nil, err
	}

	passwordHash, err := s.Digest(password)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = passwordHash
	user.ResetDigest = ""
	user.ResetSentAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	if err := s.sessions.RevokeUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("revoke sessions: %w", err)
	}

	return user, nil
}

// UpdateProfile applies a profile edit. A blank password leaves the stored
// hash unchanged; a non-blank one goes through the full policy.
func (s *AuthService) UpdateProfile(ctx context.Context, user *domain.User, name, email, password, confirmation string) error {
	email = NormalizeEmail(email)

	if err := validateName(name); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}

	if password != "" {
		if err := s.validatePassword(password, confirmation); err != nil {
			return err
		}
		passwordHash, err := s.Digest(password)
		if err != nil {
			return err
		}
		user.PasswordHash = passwordHash
	}

	user.Name = strings.TrimSpace(name)
	user.Email = email
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *AuthService) validatePassword(password, confirmation string) error {
	if password == "" {
		return fmt.Errorf("%w: password can't be blank", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(password) < s.minPassword {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, s.minPassword)
	}
	if password != confirmation {
		return fmt.Errorf("%w: password confirmation doesn't match password", domain.ErrInvalidInput)
	}
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name can't be blank", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name is too long (maximum is %d characters)", domain.ErrInvalidInput, maxNameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email can't be blank", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(email) > maxEmailLength {
		return fmt.Errorf("%w: email is too long (maximum is %d characters)", domain.ErrInvalidInput, maxEmailLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email is invalid", domain.ErrInvalidInput)
	}
	return nil
}
