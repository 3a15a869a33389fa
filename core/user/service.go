package user

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"
	"github.com/volatiletech/null/v8"

	"github.com/vigilsat/vigil/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrEmailExists        = core.NewConflictError("a user with this email already exists")
	ErrUsernameExists     = core.NewConflictError("a user with this username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrMFARequired        = errors.New("mfa code required")
	ErrInvalidMFACode     = errors.New("invalid mfa code")
	ErrMFANotSetUp        = errors.New("mfa has not been set up")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrInvalidResetLink   = errors.New("invalid or expired password reset link")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken by a user other than excludeID.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int64) error
		Create(ctx context.Context, usr User) (User, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		// GetByUsernameOrEmail matches login against username or email.
		GetByUsernameOrEmail(ctx context.Context, login string) (User, error)
		// Filter applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of username, email, first or last name.
		Filter(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, usr User) (User, error)
		UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
		Delete(ctx context.Context, ids ...int64) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		tokenGen *tokenGenerator
		appName  string
		wg       sync.WaitGroup
	}
)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		tokenGen: newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		appName:  conf.AppName,
	}
}

// Wait blocks until background work (password reset mails) is done.
func (svc *Service) Wait() {
	svc.wg.Wait()
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.StructCtx(ctx, nu); err != nil {
		return User{}, err
	}
	if !nu.SkipPasswordPolicy {
		if err := ValidatePassword("password", nu.Password, nu.Username, nu.Email, nu.FirstName); err != nil {
			return User{}, err
		}
	}
	if err := svc.repo.CheckUniqueness(ctx, nu.Username, nu.Email, 0); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Username:   nu.Username,
		Email:      nu.Email,
		FirstName:  nu.FirstName,
		LastName:   nu.LastName,
		Role:       nu.Role,
		Department: nu.Department,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.Create(ctx, usr)
}

// Authenticate checks the credentials of an active user and records the login.
// mfaCode is only checked for users with MFA enabled.
func (svc *Service) Authenticate(ctx context.Context, login, password, mfaCode string) (User, error) {
	usr, err := svc.repo.GetByUsernameOrEmail(ctx, core.CleanString(login, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err = usr.CheckPassword(password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	if usr.MFAEnabled {
		code := core.CleanString(mfaCode)
		if code == "" {
			return User{}, ErrMFARequired
		}
		if !totp.Validate(code, usr.MFASecret.String) {
			return User{}, ErrInvalidMFACode
		}
	}

	now := time.Now().UTC()
	if err = svc.repo.UpdateLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = null.TimeFrom(now)
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, login string) (User, error) {
	return svc.repo.GetByUsernameOrEmail(ctx, core.CleanString(login, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.Filter(ctx, filter)
}

func (svc *Service) UpdateProfile(ctx context.Context, id int64, up UpdateProfile) (User, error) {
	return svc.Update(ctx, id, UpdateUser{UpdateProfile: up})
}

// Update applies an admin update. Role and activation changes are only honoured here.
func (svc *Service) Update(ctx context.Context, id int64, uu UpdateUser) (User, error) {
	if err := svc.validate.StructCtx(ctx, uu); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	origEmail := usr.Email
	uu.apply(&usr)
	if usr.Email != origEmail {
		if err = svc.repo.CheckUniqueness(ctx, "", usr.Email, usr.ID); err != nil {
			return User{}, err
		}
	}
	if uu.Role != nil {
		usr.Role = *uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.Update(ctx, usr)
}

func (svc *Service) ChangePassword(ctx context.Context, id int64, cp ChangePassword) error {
	if err := svc.validate.StructCtx(ctx, cp); err != nil {
		return err
	}
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err = usr.CheckPassword(cp.CurrentPassword); err != nil {
		return core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "current_password", Error: ErrWrongPassword.Error()})
	}
	if err = ValidatePassword("new_password", cp.NewPassword, usr.Username, usr.Email, usr.FirstName); err != nil {
		return err
	}
	return svc.setPassword(ctx, usr, cp.NewPassword)
}

// SetPassword sets a new password without applying the password policy (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, login, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		return User{}, err
	}
	if err = svc.setPassword(ctx, usr, pwd); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.Update(ctx, usr)
	return err
}

// RequestPasswordReset mails a reset link to the active user owning email.
// Unknown emails are not reported so the endpoint cannot be used to enumerate accounts.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !usr.IsActive {
		return nil
	}

	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.sendPasswordResetMail(usr)
	}()
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	name := usr.FullName()
	if name == "" {
		name = usr.Username
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokenGen.makeToken(usr),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	if err := svc.validate.StructCtx(ctx, rp); err != nil {
		return User{}, err
	}
	id, err := decodeUID(rp.UID)
	if err != nil {
		return User{}, ErrInvalidResetLink
	}
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidResetLink
		}
		return User{}, err
	}
	if err = svc.tokenGen.verifyToken(usr, rp.Token); err != nil {
		return User{}, ErrInvalidResetLink
	}
	if err = ValidatePassword("password", rp.Password, usr.Username, usr.Email, usr.FirstName); err != nil {
		return User{}, err
	}
	if err = svc.setPassword(ctx, usr, rp.Password); err != nil {
		return User{}, err
	}
	return usr, nil
}

// SetupMFA generates and stores a new TOTP secret. MFA stays disabled until EnableMFA confirms a code.
func (svc *Service) SetupMFA(ctx context.Context, id int64) (MFASetup, error) {
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return MFASetup{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: svc.appName, AccountName: usr.Email})
	if err != nil {
		return MFASetup{}, errors.Wrap(err, "generating totp key")
	}

	usr.MFASecret = null.StringFrom(key.Secret())
	usr.MFAEnabled = false
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.Update(ctx, usr); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (svc *Service) EnableMFA(ctx context.Context, id int64, code string) error {
	return svc.toggleMFA(ctx, id, code, true)
}

func (svc *Service) DisableMFA(ctx context.Context, id int64, code string) error {
	return svc.toggleMFA(ctx, id, code, false)
}

func (svc *Service) toggleMFA(ctx context.Context, id int64, code string, enabled bool) error {
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !usr.MFASecret.Valid || usr.MFASecret.String == "" {
		return ErrMFANotSetUp
	}
	if !totp.Validate(core.CleanString(code), usr.MFASecret.String) {
		return ErrInvalidMFACode
	}

	usr.MFAEnabled = enabled
	if !enabled {
		usr.MFASecret = null.String{}
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.Update(ctx, usr)
	return err
}

func (svc *Service) Delete(ctx context.Context, ids ...int64) error {
	return svc.repo.Delete(ctx, ids...)
}
