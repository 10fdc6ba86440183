package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"reimburse/internal/app/notify"
	"reimburse/internal/common"
	"reimburse/internal/common/security"
	"reimburse/internal/domain/model"
	"reimburse/internal/domain/repository"
)

// ForgotPasswordMessage is returned whether or not the address is known.
const ForgotPasswordMessage = "If the email exists, reset instructions were sent"

type MessageSender interface {
	SendMessage(ctx context.Context, msg notify.Message) error
}

type AuthOptions struct {
	AllowRoleOnRegister bool
	FrontendURL         string
	ResetTTL            time.Duration
}

type AuthService struct {
	accountRepo repository.AccountRepository
	resetTokens repository.ResetTokenRepository
	tokens      *security.TokenAuthority
	sender      MessageSender
	opts        AuthOptions
	now         func() time.Time
}

func NewAuthService(
	accountRepo repository.AccountRepository,
	resetTokens repository.ResetTokenRepository,
	tokens *security.TokenAuthority,
	sender MessageSender,
	opts AuthOptions,
) *AuthService {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 15 * time.Minute
	}
	return &AuthService{
		accountRepo: accountRepo,
		resetTokens: resetTokens,
		tokens:      tokens,
		sender:      sender,
		opts:        opts,
		now:         time.Now,
	}
}

type RegisterRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
}

type RegisterResponse struct {
	ID string `json:"id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expires_at"`
	User      model.AccountSummary `json:"user"`
}

func (r RegisterRequest) validate() error {
	var missing []string
	for _, f := range [][2]string{
		{"email", r.Email}, {"full_name", r.FullName}, {"national_id", r.NationalID}, {"password", r.Password},
	} {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return common.Errorf("missing required fields %s: %w", strings.Join(missing, ", "), common.ErrInvalidInput)
	}
	// A bare address only; display names such as "Dana <dana@x.org>" are rejected.
	email := strings.TrimSpace(r.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return common.Errorf("email %q is not a valid address: %w", r.Email, common.ErrInvalidInput)
	}
	return nil
}

// Register creates an employee account. A different role is honoured only
// when AllowRoleOnRegister is set.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	role := model.RoleEmployee
	if strings.TrimSpace(req.Role) != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			return nil, common.Errorf("unknown role %q: %w", req.Role, common.ErrInvalidInput)
		}
		if parsed != model.RoleEmployee && !s.opts.AllowRoleOnRegister {
			return nil, common.Errorf("self-registration as %s is not allowed: %w", parsed, common.ErrForbidden)
		}
		role = parsed
	}

	account, err := s.newAccount(req.Email, req.FullName, req.NationalID, req.Password, role)
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, common.Errorf("failed to create account: %w", err)
	}

	log.WithFields(log.Fields{"account_id": account.ID, "role": role}).Info("Account registered")
	return &RegisterResponse{ID: account.ID}, nil
}

func (s *AuthService) newAccount(email, fullName, nationalID, password string, role model.Role) (*model.Account, error) {
	hashedPassword, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := s.now().UTC()
	return &model.Account{
		ID:           uuid.NewString(),
		Email:        model.NormalizeEmail(email),
		FullName:     strings.TrimSpace(fullName),
		NationalID:   strings.TrimSpace(nationalID),
		PasswordHash: hashedPassword,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Login never reveals which of email or password was wrong.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, common.Errorf("email and password are required: %w", common.ErrInvalidInput)
	}

	account, err := s.accountRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("invalid credentials: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if !account.IsActive || !security.CheckPasswordHash(req.Password, account.PasswordHash) {
		return nil, common.Errorf("invalid credentials: %w", common.ErrUnauthorized)
	}

	token, expiresAt, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{Token: token, ExpiresAt: expiresAt, User: account.Summary()}, nil
}

// ResolveSelf returns the stored account behind p; the role is the stored
// one, which may differ from the token's until the token expires.
func (s *AuthService) ResolveSelf(ctx context.Context, p model.Principal) (*model.AccountSummary, error) {
	account, err := s.accountRepo.FindByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("account no longer exists: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if !account.IsActive {
		return nil, common.Errorf("account is disabled: %w", common.ErrUnauthorized)
	}
	summary := account.Summary()
	return &summary, nil
}

// ForgotPassword issues a reset link when email belongs to an active
// account. Unknown addresses are indistinguishable from known ones.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return common.Errorf("email is required: %w", common.ErrInvalidInput)
	}
	account, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find account: %w", err)
	}
	if !account.IsActive {
		return nil
	}

	token := uuid.NewString()
	if err := s.resetTokens.Save(ctx, token, account.ID, s.opts.ResetTTL); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := strings.TrimRight(s.opts.FrontendURL, "/") + "/reset-password/" + token
	if s.sender != nil {
		if err := s.sender.SendMessage(ctx, notify.RenderPasswordReset(account.Email, resetURL, s.opts.ResetTTL)); err != nil {
			log.WithField("account_id", account.ID).WithError(err).Error("Password reset mail could not be queued")
		}
	}
	log.WithField("account_id", account.ID).Info("Password reset requested")
	return nil
}

// ResetPassword consumes token and replaces the account's password.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" || password == "" {
		return common.Errorf("token and password are required: %w", common.ErrInvalidInput)
	}
	accountID, err := s.resetTokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Errorf("invalid or expired token: %w", common.ErrInvalidInput)
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	hashedPassword, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.accountRepo.UpdatePassword(ctx, accountID, hashedPassword, s.now().UTC()); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Errorf("invalid or expired token: %w", common.ErrInvalidInput)
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	log.WithField("account_id", accountID).Info("Password reset completed")
	return nil
}

type seedFile struct {
	Accounts []struct {
		Email      string `yaml:"email"`
		FullName   string `yaml:"full_name"`
		NationalID string `yaml:"national_id"`
		Password   string `yaml:"password"`
		Role       string `yaml:"role"`
	} `yaml:"accounts"`
}

// SeedAccounts creates the accounts listed in a YAML file, skipping emails
// that already exist. It is how budget and admin accounts come to be.
func (s *AuthService) SeedAccounts(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	created := 0
	for i, a := range seeds.Accounts {
		req := RegisterRequest{Email: a.Email, FullName: a.FullName, NationalID: a.NationalID, Password: a.Password}
		if err := req.validate(); err != nil {
			return created, fmt.Errorf("seed account %d: %w", i, err)
		}
		role, ok := model.ParseRole(a.Role)
		if !ok {
			return created, common.Errorf("seed account %d: unknown role %q: %w", i, a.Role, common.ErrInvalidInput)
		}

		if _, err := s.accountRepo.FindByEmail(ctx, a.Email); err == nil {
			continue
		} else if !errors.Is(err, common.ErrNotFound) {
			return created, fmt.Errorf("seed account %d: %w", i, err)
		}

		account, err := s.newAccount(a.Email, a.FullName, a.NationalID, a.Password, role)
		if err != nil {
			return created, err
		}
		if err := s.accountRepo.Create(ctx, account); err != nil {
			if errors.Is(err, common.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("seed account %d: %w", i, err)
		}
		created++
		log.WithFields(log.Fields{"email": account.Email, "role": role}).Info("Seeded account")
	}
	return created, nil
}
