package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/vigilsat/vigil/core"
)

// Roles
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

var (
	AllRoles   = []string{RoleAdmin, RoleManager, RoleEmployee}
	StaffRoles = []string{RoleAdmin, RoleManager}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID           int64       `json:"id" db:"id"`
	Username     string      `json:"username" db:"username"`
	Email        string      `json:"email" db:"email"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	FirstName    string      `json:"first_name" db:"first_name"`
	LastName     string      `json:"last_name" db:"last_name"`
	Role         string      `json:"role" db:"role"`
	Department   string      `json:"department" db:"department"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	MFAEnabled   bool        `json:"mfa_enabled" db:"mfa_enabled"`
	MFASecret    null.String `json:"-" db:"mfa_secret"`
	LastLogin    null.Time   `json:"last_login" db:"last_login"` // UTC
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) FullName() string {
	return core.CleanString(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) IsStaff() bool { return u.Role == RoleAdmin || u.Role == RoleManager }

// Identity is the request identity carried for this user.
func (u *User) Identity() *core.Identity {
	return &core.Identity{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Department: u.Department,
		Role:       u.Role,
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username   string `json:"username" validate:"required,min=3,max=64,alphanum_"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	FirstName  string `json:"first_name" validate:"max=100"`
	LastName   string `json:"last_name" validate:"max=100"`
	Department string `json:"department" validate:"max=100"`
	Role       string `json:"role" validate:"omitempty,role"`

	// SkipPasswordPolicy is set by the admin CLI when bootstrapping accounts.
	SkipPasswordPolicy bool `json:"-"`
}

func (nu *NewUser) Clean() {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Department = core.CleanString(nu.Department)
	if nu.Role == "" {
		nu.Role = RoleEmployee
	}
}

// UpdateProfile defines what information a User may change about themselves.
type UpdateProfile struct {
	FirstName  *string `json:"first_name" validate:"omitempty,max=100"`
	LastName   *string `json:"last_name" validate:"omitempty,max=100"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Department *string `json:"department" validate:"omitempty,max=100"`
}

func (up *UpdateProfile) apply(usr *User) {
	if up.FirstName != nil {
		usr.FirstName = core.CleanString(*up.FirstName)
	}
	if up.LastName != nil {
		usr.LastName = core.CleanString(*up.LastName)
	}
	if up.Email != nil {
		if email := core.CleanString(*up.Email, true /* lower */); email != "" {
			usr.Email = email
		}
	}
	if up.Department != nil {
		usr.Department = core.CleanString(*up.Department)
	}
}

// UpdateUser defines what information an admin may change on an existing User.
type UpdateUser struct {
	UpdateProfile
	Role     *string `json:"role" validate:"omitempty,role"`
	IsActive *bool   `json:"is_active"`
}

type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ResetUserPassword struct {
	UID      string `json:"uid" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type QueryFilter struct {
	Search     string `query:"search"`
	Role       string `query:"role"`
	Department string `query:"department"`
	IsActive   *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Department = core.CleanString(qf.Department)
}
