package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecolehub/backend/core"
)

// Roles are "<family>:<grade>". A user holding any role of a family is a member of it.
const (
	RoleSuper = "super:"

	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	RoleCashier = "cashier:"
	RoleTeacher = "teacher:"
	RoleStudent = "student:"
)

// Role describes an assignable role. Priority orders roles: nobody may grant
// or manage a role above their own.
type Role struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Priority int    `json:"-"`
}

// Roles lists every role from the lowest to the highest priority.
var Roles = []Role{
	{Name: "Student", Value: RoleStudent, Priority: 1},
	{Name: "Teacher", Value: RoleTeacher, Priority: 11},
	{Name: "Cashier", Value: RoleCashier, Priority: 15},
	{Name: "Admin", Value: RoleAdmin, Priority: 21},
	{Name: "Admin Principal", Value: RoleAdminPrincipal, Priority: 29},
	{Name: "Admin Owner", Value: RoleAdminOwner, Priority: 30},
	{Name: "Super Admin", Value: RoleSuper, Priority: 40},
}

var (
	SuperRoles   = []string{RoleSuper}
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	CashierRoles = []string{RoleCashier}
	TeacherRoles = []string{RoleTeacher}

	// ValidatorRoles may validate or reject submitted grades.
	ValidatorRoles = []string{RoleAdminOwner, RoleAdminPrincipal}

	AllRoles = make([]string, 0, len(Roles))

	priorities = make(map[string]int, len(Roles))
)

func init() {
	for _, r := range Roles {
		AllRoles = append(AllRoles, r.Value)
		priorities[r.Value] = r.Priority
	}
}

// RolePriority is 0 for unknown roles.
func RolePriority(role string) int { return priorities[role] }

// MaxRolePriority returns the highest priority among roles.
func MaxRolePriority(roles []string) int {
	max := 0
	for _, role := range roles {
		if p := priorities[role]; p > max {
			max = p
		}
	}
	return max
}

type User struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id,omitempty"` // empty for platform users
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetActive(active bool) { u.IsActive = &active }

// Active treats an unset flag as active.
func (u *User) Active() bool { return u.IsActive == nil || *u.IsActive }

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err == nil {
		u.PasswordHash = hash
	}
	return err
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) inFamily(family string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, family) {
			return true
		}
	}
	return false
}

func (u *User) IsSuper() bool   { return u.inFamily(RoleSuper) }
func (u *User) IsAdmin() bool   { return u.IsSuper() || u.inFamily(RoleAdmin) }
func (u *User) IsCashier() bool { return u.inFamily(RoleCashier) }
func (u *User) IsTeacher() bool { return u.inFamily(RoleTeacher) }
func (u *User) IsStudent() bool { return u.inFamily(RoleStudent) }

// BelongsTo reports whether the user may act on schoolID's data.
func (u *User) BelongsTo(schoolID string) bool {
	return u.IsSuper() || (u.SchoolID != "" && u.SchoolID == schoolID)
}

// CanGrant reports whether none of roles outranks the user's own.
func (u *User) CanGrant(roles []string) bool {
	return MaxRolePriority(roles) <= MaxRolePriority(u.Roles)
}

// CanManage reports whether the user may edit or delete target: an admin of
// target's school (or a super admin) whose roles are not outranked. Nobody manages themselves.
func (u *User) CanManage(target User) bool {
	return u.ID != target.ID && u.IsAdmin() && u.BelongsTo(target.SchoolID) && u.CanGrant(target.Roles)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	SchoolID        string   `json:"school_id" validate:"omitempty,uuid"`
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser is a partial update: empty fields keep the current values.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// TouchesAccount reports whether the update changes fields only an admin may change.
func (uu *UpdateUser) TouchesAccount() bool {
	return uu.IsActive != nil || uu.Roles != nil || uu.Username != "" || uu.Email != ""
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.Name = orDefault(core.CleanString(uu.Name), origUsr.Name)
	uu.Username = orDefault(core.CleanString(uu.Username, true /* lower */), origUsr.Username)
	uu.Email = orDefault(core.CleanString(uu.Email, true /* lower */), origUsr.Email)
	if uu.Roles == nil {
		uu.Roles = origUsr.Roles
	}
	if uu.IsActive == nil {
		uu.IsActive = origUsr.IsActive
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	SchoolID    string    `query:"-"`
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects one User; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string // [username, email]
}
