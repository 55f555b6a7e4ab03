package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"royaltyhub.org/internal/docstore"
)

// DefaultResetTTL bounds how long a forgot-password token stays usable.
const DefaultResetTTL = time.Hour

const msgUserNotFound = "Authentication failed. User not found."

// SignInResult is the body returned by the issuance endpoints.
type SignInResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	UserType string `json:"userType,omitempty"`
	Token    string `json:"token,omitempty"`
}

// NewUser is the input of SignUp.
type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Internal  bool   `json:"internal"`
	ClientID  string `json:"clientId,omitempty"`
	ParentID  string `json:"parentId,omitempty"`
	PayeeID   string `json:"payeeId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Service issues session tokens and manages the password lifecycle.
type Service struct {
	users     UserStore
	contracts ContractStore
	codec     *Codec
	hasher    PasswordHasher
	now       func() time.Time
	resetTTL  time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithResetTTL configures the forgot-password window.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// NewService wires the user store, contract lookup and token codec.
func NewService(users UserStore, contracts ContractStore, codec *Codec, opts ...ServiceOption) *Service {
	s := &Service{
		users:     users,
		contracts: contracts,
		codec:     codec,
		hasher:    BcryptHasher{},
		now:       time.Now,
		resetTTL:  DefaultResetTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Codec exposes the token codec the service signs with.
func (s *Service) Codec() *Codec { return s.codec }

// SignIn checks credentials and issues a token. Rejected credentials are a
// result, not an error; the error return is reserved for store failures.
func (s *Service) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return SignInResult{Message: msgUserNotFound}, nil
	}
	if err != nil {
		return SignInResult{}, fmt.Errorf("find user: %w", err)
	}

	decision := Authenticate(s.hasher, user, password)
	if !decision.Granted {
		return SignInResult{Message: "Authentication failed. " + sentence(decision.Reason)}, nil
	}

	var contractIDs []string
	if Classify(user) == RolePayee && s.contracts != nil {
		contractIDs, err = s.contracts.ContractIDs(ctx, user.ClientID, user.PayeeID)
		if err != nil {
			return SignInResult{}, fmt.Errorf("load payee contracts: %w", err)
		}
	}
	id := NewIdentity(user, contractIDs)
	token, _, err := s.codec.Issue(id)
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{Success: true, UserType: id.Role.String(), Token: token}, nil
}

// TestToken reports whether token is still valid.
func (s *Service) TestToken(token string) SignInResult {
	id, err := s.codec.Verify(token)
	if err != nil {
		return SignInResult{}
	}
	return SignInResult{Success: true, UserType: id.Role.String(), Token: token}
}

// SignUp creates a user with a hashed password. Email addresses are unique.
func (s *Service) SignUp(ctx context.Context, in NewUser) (User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return User{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	created, err := s.users.Create(ctx, User{
		Email:     email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Internal:  in.Internal,
		ClientID:  in.ClientID,
		ParentID:  in.ParentID,
		PayeeID:   in.PayeeID,
		Status:    status,
	})
	if err != nil {
		return User{}, err
	}
	return created.Public(), nil
}

// ForgotPassword stores a fresh reset token together with its issue date and
// returns the token for delivery to the user.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	_, err = s.users.Update(ctx, user.ID, docstore.Document{
		"forgotPasswordToken": token,
		"forgotPasswordDate":  s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// SetNewPassword consumes a reset token. Tokens older than the reset window
// fail with ErrResetExpired and remain stored until overwritten.
func (s *Service) SetNewPassword(ctx context.Context, resetToken, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	user, err := s.users.FindByResetToken(ctx, strings.TrimSpace(resetToken))
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if user.ForgotPasswordDate == nil || s.now().Sub(*user.ForgotPasswordDate) > s.resetTTL {
		return ErrResetExpired
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.users.Update(ctx, user.ID, docstore.Document{
		"password":            hash,
		"forgotPasswordToken": nil,
		"forgotPasswordDate":  nil,
	})
	return err
}

// User returns the public view of a stored user.
func (s *Service) User(ctx context.Context, id string) (User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return u.Public(), nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// sentence upper-cases the first letter and terminates with a period.
func sentence(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r) + "."
}
