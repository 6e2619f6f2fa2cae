package user

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/danielortegac/qlase/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account deactivated")
	ErrNegativeCharge     = errors.New("storage charge cannot be negative")
	ErrChargeTooLarge     = errors.New("storage charge exceeds the per-upload maximum")
	ErrStorageOverflow    = errors.New("storage counter would overflow")
	ErrInvalidEmail       = errors.New("invalid email")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		GetUsersByID(ctx context.Context, ids ...string) ([]User, error)
		// UpdateUser saves profile fields only. Counters (storage, credits) and owned courses
		// are changed through their dedicated atomic methods.
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsers(ctx context.Context, ids ...string) error
		// IncrementStorage atomically adds delta bytes to the user's storage counter.
		// It returns ErrStorageOverflow, leaving the counter unchanged, when the sum would not fit an int64.
		IncrementStorage(ctx context.Context, id string, delta int64) error
		// DecrementCredits atomically removes amount credits if the balance allows it.
		DecrementCredits(ctx context.Context, id string, amount int) (bool, error)
		ResetCredits(ctx context.Context, id string, credits int, at time.Time) error
		AddOwnedCourse(ctx context.Context, id, courseID string) error
		RemoveOwnedCourse(ctx context.Context, id, courseID string) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByIDs(ctx context.Context, ids ...string) ([]User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetPassword(ctx context.Context, id, pwd string) error
		Delete(ctx context.Context, ids ...string) error
		FindOrInvite(ctx context.Context, email string) (User, bool, error)
		ChargeStorage(ctx context.Context, ownerID string, byteDelta int64) error
		StorageUsage(ctx context.Context, id string) (StorageUsage, error)
		SpendCredits(ctx context.Context, id string, amount int) (bool, error)
		RefreshCredits(ctx context.Context, usr User) (User, error)
		ResetCredits(ctx context.Context, id string) (User, error)
		GrantRoles(ctx context.Context, id string, roles ...string) (User, error)
		AddOwnedCourse(ctx context.Context, id, courseID string) error
		RemoveOwnedCourse(ctx context.Context, id, courseID string) error
	}

	service struct {
		repo    Repository
		quota   core.QuotaConfig
		credits core.CreditsConfig
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:    repo,
		quota:   conf.Quota,
		credits: conf.Credits,
		logger:  logger,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Register creates an active account. An invited placeholder with the same email is
// activated in place so that the courses it was enrolled in follow the new account.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc()
	email := core.CleanString(nu.Email, true /* lower */)
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}

	shadow, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	switch {
	case err == nil && shadow.IsInvited():
		shadow.Name = nu.Name
		shadow.Roles = roles
		shadow.Status = StatusActive
		shadow.IsPremium = nu.IsPremium
		shadow.UpdatedAt = now
		if err = shadow.SetPassword(nu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
		usr, err := svc.repo.UpdateUser(ctx, shadow)
		return usr, errors.Wrap(err, "activating invited user")
	case err == nil:
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case !core.IsNotFound(err):
		return User{}, errors.Wrap(err, "finding user by email")
	}

	usr := User{
		Name:            nu.Name,
		Email:           email,
		Roles:           roles,
		Status:          StatusActive,
		IsPremium:       nu.IsPremium,
		AICredits:       svc.startingCredits(nu.IsPremium),
		LastCreditReset: now,
		OwnedCourseIDs:  []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err = svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *service) startingCredits(premium bool) int {
	if premium {
		return svc.credits.ProDaily
	}
	return svc.credits.FreeMonthly
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if usr.IsInvited() || usr.CheckPassword(pwd) != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive() {
		return User{}, ErrAccountInactive
	}

	usr.LastLogin = core.NowFunc()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return svc.RefreshCredits(ctx, usr)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByIDs(ctx context.Context, ids ...string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return svc.repo.GetUsersByID(ctx, ids...)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if uu.Email != usr.Email {
		if err := svc.checkUniqueness(ctx, uu.Email, usr); err != nil {
			return User{}, err
		}
	}

	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Status != "" {
		usr.Status = uu.Status
	}
	if uu.IsPremium != nil {
		usr.IsPremium = *uu.IsPremium
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, id, pwd string) error {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsers(ctx, ids...)
}

// FindOrInvite returns the user registered with email, or creates an invited student
// placeholder for it. The bool reports whether a placeholder was created.
func (svc *service) FindOrInvite(ctx context.Context, email string) (User, bool, error) {
	email = core.CleanString(email, true /* lower */)
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return User{}, false, core.NewValidationError(ErrInvalidEmail, core.FieldError{Field: "email", Error: ErrInvalidEmail.Error()})
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	if err == nil {
		return usr, false, nil
	}
	if !core.IsNotFound(err) {
		return User{}, false, errors.Wrap(err, "finding user by email")
	}

	now := core.NowFunc()
	usr, err = svc.repo.CreateUser(ctx, User{
		Name:            email[:at],
		Email:           email,
		Roles:           []string{RoleStudent},
		Status:          StatusInvited,
		AICredits:       svc.credits.FreeMonthly,
		LastCreditReset: now,
		OwnedCourseIDs:  []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return User{}, false, errors.Wrap(err, "creating invited user")
	}
	return usr, true, nil
}

// ChargeStorage adds byteDelta to the owner's storage counter. The quota is advisory:
// the limit is never checked here, and nothing ever decrements the counter.
func (svc *service) ChargeStorage(ctx context.Context, ownerID string, byteDelta int64) error {
	if byteDelta < 0 {
		return core.NewValidationError(ErrNegativeCharge, core.FieldError{Field: "size", Error: ErrNegativeCharge.Error()})
	}
	if byteDelta > MaxStorageCharge {
		return core.NewValidationError(ErrChargeTooLarge, core.FieldError{Field: "size", Error: ErrChargeTooLarge.Error()})
	}
	if byteDelta == 0 {
		return nil
	}
	if err := svc.repo.IncrementStorage(ctx, ownerID, byteDelta); err != nil {
		if errors.Cause(err) == ErrStorageOverflow {
			return core.NewValidationError(ErrStorageOverflow, core.FieldError{Field: "size", Error: ErrStorageOverflow.Error()})
		}
		return errors.Wrap(err, "incrementing storage")
	}
	return nil
}

func (svc *service) StorageUsage(ctx context.Context, id string) (StorageUsage, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return StorageUsage{}, err
	}
	return NewStorageUsage(usr, svc.quota), nil
}

func (svc *service) SpendCredits(ctx context.Context, id string, amount int) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	ok, err := svc.repo.DecrementCredits(ctx, id, amount)
	return ok, errors.Wrap(err, "decrementing credits")
}

// RefreshCredits resets the balance when the refill period rolled over:
// daily for premium users, monthly for the others (UTC calendar).
func (svc *service) RefreshCredits(ctx context.Context, usr User) (User, error) {
	now := core.NowFunc()
	if !creditsDue(usr, now) {
		return usr, nil
	}

	credits := svc.startingCredits(usr.IsPremium)
	if err := svc.repo.ResetCredits(ctx, usr.ID, credits, now); err != nil {
		return usr, errors.Wrap(err, "resetting credits")
	}
	usr.AICredits = credits
	usr.LastCreditReset = now
	return usr, nil
}

func creditsDue(usr User, now time.Time) bool {
	if usr.LastCreditReset.IsZero() {
		return true
	}
	last := usr.LastCreditReset.UTC()
	now = now.UTC()
	if usr.IsPremium {
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd
	}
	return last.Year() != now.Year() || last.Month() != now.Month()
}

// ResetCredits forces a refill regardless of the last reset date.
func (svc *service) ResetCredits(ctx context.Context, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.LastCreditReset = time.Time{}
	return svc.RefreshCredits(ctx, usr)
}

func (svc *service) GrantRoles(ctx context.Context, id string, roles ...string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	for _, role := range roles {
		if !core.ContainsString(AllRoles, role) {
			return User{}, core.NewValidationError(nil, core.FieldError{Field: "roles", Error: allRolesText})
		}
		if !core.ContainsString(usr.Roles, role) {
			usr.Roles = append(usr.Roles, role)
		}
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) AddOwnedCourse(ctx context.Context, id, courseID string) error {
	return errors.Wrap(svc.repo.AddOwnedCourse(ctx, id, courseID), "adding owned course")
}

func (svc *service) RemoveOwnedCourse(ctx context.Context, id, courseID string) error {
	return errors.Wrap(svc.repo.RemoveOwnedCourse(ctx, id, courseID), "removing owned course")
}
