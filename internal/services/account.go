package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/icard-hq/apiserver/internal/auth"
	"github.com/icard-hq/apiserver/internal/mailer"
	"github.com/icard-hq/apiserver/internal/session"
	"github.com/icard-hq/apiserver/internal/store"
	"github.com/icard-hq/apiserver/types"
)

const (
	otpPurposeRegistration  = "registration"
	otpPurposePasswordReset = "password-reset"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetActive(ctx context.Context, id int, active bool) error
	SetPasswordHash(ctx context.Context, id int, hash string) error
	TouchLastLogin(ctx context.Context, id int, at time.Time) error
}

// AddressRepository defines persistence operations for addresses.
type AddressRepository interface {
	Get(ctx context.Context, id int) (types.Address, error)
	Create(ctx context.Context, addr types.Address) (types.Address, error)
	Update(ctx context.Context, addr types.Address) (types.Address, error)
}

// AccountService orchestrates the account lifecycle: login, OTP-gated
// registration, password reset, password change, and profile edits.
//
// Every operation receives the caller's session explicitly. Operations
// mutate the session in memory; the HTTP layer persists it afterwards.
// Each operation performs at most one read-modify-write against a single
// user row, so a failure never leaves a partial mutation behind.
type AccountService struct {
	users     UserRepository
	addresses AddressRepository
	hasher    auth.PasswordHasher
	sender    mailer.Sender
	otpTTL    time.Duration
}

func NewAccountService(
	users UserRepository,
	addresses AddressRepository,
	hasher auth.PasswordHasher,
	sender mailer.Sender,
	otpTTL time.Duration,
) *AccountService {
	return &AccountService{
		users:     users,
		addresses: addresses,
		hasher:    hasher,
		sender:    sender,
		otpTTL:    otpTTL,
	}
}

// Login authenticates an active account by email and password. Unknown
// email, inactive account, and wrong password all produce the same
// ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, sess *session.Session, email, password string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, validationErr("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !user.Active || user.PasswordHash == "" {
		return types.User{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return types.User{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return types.User{}, err
	}
	user.LastLogin = &now

	sess.SignIn(user.ID, user.Role)
	return user, nil
}

// RegisterInput carries the fields for a new account.
type RegisterInput struct {
	FullName string
	Email    string
	MobileNo string
	Password string
	Role     types.Role
}

// Register creates a new inactive account and issues an OTP challenge to
// the registered mailbox. Only an admin session may register accounts.
//
// If the OTP email cannot be delivered, the created row is kept (the
// account stays in pending verification) and the delivery error is
// surfaced to the caller.
func (s *AccountService) Register(ctx context.Context, sess *session.Session, input RegisterInput) (types.User, error) {
	if !sess.Authenticated() {
		return types.User{}, ErrNotAuthenticated
	}
	if !sess.Role.CanRegisterUsers() {
		return types.User{}, ErrForbidden
	}

	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.TrimSpace(input.Email)
	if input.FullName == "" || input.Email == "" || input.Password == "" {
		return types.User{}, validationErr("full name, email, and password are required")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return types.User{}, validationErr("invalid email address")
	}
	if input.Role == "" {
		input.Role = types.RoleEmployee
	}
	if !input.Role.Valid() {
		return types.User{}, validationErr("unknown role")
	}

	// Existence check before any write; the unique index on users.email is
	// the second line of defense under concurrent registration.
	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return types.User{}, err
	}
	if exists {
		return types.User{}, store.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		FullName:     input.FullName,
		Email:        input.Email,
		MobileNo:     input.MobileNo,
		Role:         input.Role,
		PasswordHash: hash,
		Active:       false,
	})
	if err != nil {
		return types.User{}, err
	}

	if err := s.issueOTP(ctx, sess, user.Email, otpPurposeRegistration, "OTP Verification"); err != nil {
		return user, err
	}
	return user, nil
}

// VerifyOTP checks the submitted email and code against the session's
// pending challenge and activates the matching account. On success the
// session is signed in as the activated user and the challenge is cleared.
// On mismatch the challenge is preserved so the user may retry.
func (s *AccountService) VerifyOTP(ctx context.Context, sess *session.Session, email, code string) (types.User, error) {
	pending := sess.OTP
	if pending == nil {
		return types.User{}, ErrInvalidOTP
	}
	if pending.Expired(time.Now()) {
		sess.ClearOTP()
		return types.User{}, ErrInvalidOTP
	}
	// A password-reset code cannot activate an account.
	if pending.Purpose != otpPurposeRegistration || !pending.Matches(email, code) {
		return types.User{}, ErrInvalidOTP
	}

	user, err := s.users.GetByEmail(ctx, pending.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, err
	}

	if err := s.users.SetActive(ctx, user.ID, true); err != nil {
		return types.User{}, err
	}
	user.Active = true

	sess.SignIn(user.ID, user.Role)
	sess.ClearOTP()
	return user, nil
}

// ForgotPassword issues a password-reset OTP to an existing account.
// Unlike Login, this operation reports an unknown email as such; the
// original flow behaves the same way.
func (s *AccountService) ForgotPassword(ctx context.Context, sess *session.Session, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationErr("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return s.issueOTP(ctx, sess, user.Email, otpPurposePasswordReset, "Password Reset OTP")
}

// ResetPassword replaces the account password after OTP validation. The
// challenge handling mirrors VerifyOTP.
func (s *AccountService) ResetPassword(ctx context.Context, sess *session.Session, email, code, newPassword string) error {
	if newPassword == "" {
		return validationErr("new password is required")
	}

	pending := sess.OTP
	if pending == nil {
		return ErrInvalidOTP
	}
	if pending.Expired(time.Now()) {
		sess.ClearOTP()
		return ErrInvalidOTP
	}
	// A registration code cannot reset a password.
	if pending.Purpose != otpPurposePasswordReset || !pending.Matches(email, code) {
		return ErrInvalidOTP
	}

	user, err := s.users.GetByEmail(ctx, pending.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	sess.ClearOTP()
	return nil
}

// ChangePassword replaces the password of the signed-in user after the old
// password verifies. On verification failure the stored hash is untouched.
func (s *AccountService) ChangePassword(ctx context.Context, sess *session.Session, oldPassword, newPassword string) error {
	if !sess.Authenticated() {
		return ErrNotAuthenticated
	}
	if oldPassword == "" || newPassword == "" {
		return validationErr("old and new passwords are required")
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.PasswordHash == "" || !s.hasher.Verify(user.PasswordHash, oldPassword) {
		return ErrOldPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.users.SetPasswordHash(ctx, user.ID, hash)
}

// Profile returns the signed-in user with their address resolved.
func (s *AccountService) Profile(ctx context.Context, sess *session.Session) (types.User, *types.Address, error) {
	if !sess.Authenticated() {
		return types.User{}, nil, ErrNotAuthenticated
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, nil, ErrUserNotFound
		}
		return types.User{}, nil, err
	}
	var addr *types.Address
	if user.AddressID != nil {
		a, err := s.addresses.Get(ctx, *user.AddressID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.User{}, nil, err
		}
		if err == nil {
			addr = &a
		}
	}
	return user, addr, nil
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	FullName  string
	MobileNo  string
	Address   types.Address
	ImageKey  string
	IPAddress string
}

// UpdateProfile edits the signed-in user's own record, creating or updating
// the linked address as needed.
func (s *AccountService) UpdateProfile(ctx context.Context, sess *session.Session, input ProfileInput) (types.User, error) {
	if !sess.Authenticated() {
		return types.User{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(input.FullName) == "" {
		return types.User{}, validationErr("full name is required")
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, err
	}

	if user.AddressID != nil {
		input.Address.ID = *user.AddressID
		if _, err := s.addresses.Update(ctx, input.Address); err != nil {
			return types.User{}, err
		}
	} else {
		addr, err := s.addresses.Create(ctx, input.Address)
		if err != nil {
			return types.User{}, err
		}
		user.AddressID = &addr.ID
	}

	user.FullName = strings.TrimSpace(input.FullName)
	user.MobileNo = strings.TrimSpace(input.MobileNo)
	if input.ImageKey != "" {
		user.ImageKey = input.ImageKey
	}
	if input.IPAddress != "" {
		user.IPAddress = input.IPAddress
	}

	return s.users.Update(ctx, user)
}

// issueOTP generates a fresh challenge, stores it in the session
// (overwriting any previous challenge), and mails the code. The challenge
// is stored before sending, so a failed send leaves a retryable pending
// state rather than none.
func (s *AccountService) issueOTP(ctx context.Context, sess *session.Session, email, purpose, subject string) error {
	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}

	sess.SetOTP(auth.PendingOTP{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(s.otpTTL),
	})

	body := fmt.Sprintf("<p>Your OTP is <b>%s</b>. It expires in %d minutes.</p>", code, int(s.otpTTL.Minutes()))
	return s.sender.Send(ctx, email, subject, body)
}
