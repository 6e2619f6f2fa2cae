package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielortegac/qlase/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"
	RoleAdminSuper = "admin:super"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

// Capabilities
const (
	// CapManageAnyCourse lets a user read and manage courses they are not the instructor of.
	CapManageAnyCourse = "course:manage_any"
	// CapManageUsers lets a user create, edit and delete other users.
	CapManageUsers = "user:manage"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusInvited  = "invited"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminSuper}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminSuper: 30,
		RoleAdminOwner: 29,
		RoleAdmin:      21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	capabilityRoles = map[string][]string{
		CapManageAnyCourse: {RoleAdminSuper, RoleAdminOwner},
		CapManageUsers:     {RoleAdminSuper, RoleAdminOwner, RoleAdmin},
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
		{Name: "Super Admin", Value: RoleAdminSuper},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Roles           []string  `json:"roles"`
	Status          string    `json:"status"`
	IsPremium       bool      `json:"is_premium"`
	StorageUsed     int64     `json:"storage_used"`
	AICredits       int       `json:"ai_credits"`
	LastCreditReset time.Time `json:"last_credit_reset"` // UTC
	OwnedCourseIDs  []string  `json:"owned_course_ids"`
	PasswordHash    []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
	LastLogin       time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if core.ContainsString(u.Roles, r) {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool   { return u.RoleStartsWith(RoleAdmin) }
func (u User) IsTeacher() bool { return u.RoleStartsWith(RoleTeacher) }
func (u User) IsStudent() bool { return u.RoleStartsWith(RoleStudent) }

func (u User) IsActive() bool  { return u.Status == StatusActive }
func (u User) IsInvited() bool { return u.Status == StatusInvited }

// Can reports whether one of the user's roles grants the capability.
func (u User) Can(capability string) bool {
	return u.HasRole(capabilityRoles[capability]...)
}

// MaxStorageCharge caps a single charge (1 TiB). Upload DTOs carry the same bound in their lte tag.
const MaxStorageCharge int64 = 1 << 40

// StorageLimit is derived from the premium flag. It is never stored.
func StorageLimit(usr User, quota core.QuotaConfig) int64 {
	if usr.IsPremium {
		return quota.PremiumStorageLimit
	}
	return quota.FreeStorageLimit
}

// StorageUsage is a read-only view of a user's storage counter against their limit.
// The limit is advisory: OverLimit is reported, never enforced.
type StorageUsage struct {
	Used      int64   `json:"used"`
	Limit     int64   `json:"limit"`
	Percent   float64 `json:"percent"`
	OverLimit bool    `json:"over_limit"`
}

func NewStorageUsage(usr User, quota core.QuotaConfig) StorageUsage {
	limit := StorageLimit(usr, quota)
	usage := StorageUsage{Used: usr.StorageUsed, Limit: limit}
	if limit > 0 {
		usage.Percent = float64(usr.StorageUsed) / float64(limit) * 100
	}
	if usage.Percent > 100 {
		usage.Percent = 100
	}
	usage.OverLimit = usr.StorageUsed > limit
	return usage
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	IsPremium       bool     `json:"is_premium"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Status          string   `json:"status" validate:"omitempty,oneof=active inactive"`
	IsPremium       *bool    `json:"is_premium"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	return validate.Struct(uu)
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	Status      string    `query:"status"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Status == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// Match reports whether usr satisfies every set field of the filter.
// In-memory stores use it; SQL and document stores translate the same rules.
func (qf *QueryFilter) Match(usr User) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) || strings.Contains(strings.ToLower(usr.Email), s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var found bool
		for _, r := range qf.Roles {
			if usr.RoleStartsWith(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.Status != "" && usr.Status != qf.Status {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom.UTC()) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo.UTC()) {
		return false
	}
	return true
}
