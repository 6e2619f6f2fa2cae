package user_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/tests"
)

var ctx = context.Background()

const goodPwd = "Tr0ub4dor&3x"

func setNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now.UTC() }
	t.Cleanup(func() { core.NowFunc = orig })
}

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t)

	usr, err := env.Users.Register(ctx, user.NewUser{
		Name:            "Ada Lovelace",
		Email:           " Ada@Example.COM ",
		Password:        goodPwd,
		PasswordConfirm: goodPwd,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "ada@example.com", usr.Email)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.True(t, usr.IsActive())
	assert.Equal(t, env.Conf.Credits.FreeMonthly, usr.AICredits)
	assert.Zero(t, usr.StorageUsed)
	assert.NoError(t, usr.CheckPassword(goodPwd))

	premium, err := env.Users.Register(ctx, user.NewUser{
		Name:      "Grace",
		Email:     "grace@example.com",
		Password:  goodPwd,
		Roles:     []string{user.RoleTeacher},
		IsPremium: true,
	})
	require.NoError(t, err)
	assert.Equal(t, env.Conf.Credits.ProDaily, premium.AICredits)

	_, err = env.Users.Register(ctx, user.NewUser{Name: "Dup", Email: "ada@example.com", Password: goodPwd})
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, user.ErrEmailExists, verr.Err)
}

func TestService_Register_activatesInvitedUser(t *testing.T) {
	env := testutil.NewEnv(t)

	shadow, invited, err := env.Users.FindOrInvite(ctx, "New.Student@example.com")
	require.NoError(t, err)
	require.True(t, invited)
	require.NoError(t, env.Users.AddOwnedCourse(ctx, shadow.ID, "course-1"))

	_, err = env.Users.Authenticate(ctx, "new.student@example.com", "")
	assert.Equal(t, user.ErrInvalidCredentials, err, "invited users cannot log in")

	usr, err := env.Users.Register(ctx, user.NewUser{
		Name:     "New Student",
		Email:    "new.student@example.com",
		Password: goodPwd,
	})
	require.NoError(t, err)
	assert.Equal(t, shadow.ID, usr.ID)
	assert.True(t, usr.IsActive())
	assert.Equal(t, "New Student", usr.Name)
	assert.Equal(t, []string{"course-1"}, env.Reload(t, usr).OwnedCourseIDs)

	_, err = env.Users.Authenticate(ctx, "new.student@example.com", goodPwd)
	assert.NoError(t, err)
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	active := testutil.CreateUser(t, env.UserRepo, "Active", "active@example.com", goodPwd, []string{user.RoleStudent}, user.StatusActive)
	testutil.CreateUser(t, env.UserRepo, "Inactive", "inactive@example.com", goodPwd, []string{user.RoleStudent}, user.StatusInactive)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "nobody@example.com", pwd: goodPwd, wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", email: "active@example.com", pwd: "nope", wantErr: user.ErrInvalidCredentials},
		{name: "inactive", email: "inactive@example.com", pwd: goodPwd, wantErr: user.ErrAccountInactive},
		{name: "ok, case insensitive", email: "ACTIVE@example.com", pwd: goodPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := env.Users.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, usr.ID)
			assert.False(t, usr.LastLogin.IsZero())
		})
	}
}

func TestService_ChargeStorage(t *testing.T) {
	env := testutil.NewEnv(t)
	usr := testutil.CreateTeacher(t, env.UserRepo, "Teacher", "teacher@example.com")

	require.NoError(t, env.Users.ChargeStorage(ctx, usr.ID, 100))
	require.NoError(t, env.Users.ChargeStorage(ctx, usr.ID, 0))
	require.NoError(t, env.Users.ChargeStorage(ctx, usr.ID, 50))
	assert.Equal(t, int64(150), env.Reload(t, usr).StorageUsed)

	err := env.Users.ChargeStorage(ctx, usr.ID, -10)
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, user.ErrNegativeCharge, verr.Err)
	assert.Equal(t, int64(150), env.Reload(t, usr).StorageUsed)

	assert.True(t, core.IsNotFound(env.Users.ChargeStorage(ctx, "missing", 1)))
}

func TestService_ChargeStorage_bounds(t *testing.T) {
	env := testutil.NewEnv(t)
	usr := testutil.CreateTeacher(t, env.UserRepo, "Teacher", "teacher@example.com")
	require.NoError(t, env.UserRepo.IncrementStorage(ctx, usr.ID, math.MaxInt64-100))

	tests := []struct {
		name    string
		delta   int64
		wantErr error
		want    int64
	}{
		{name: "above the per-upload maximum", delta: user.MaxStorageCharge + 1, wantErr: user.ErrChargeTooLarge, want: math.MaxInt64 - 100},
		{name: "would overflow", delta: 101, wantErr: user.ErrStorageOverflow, want: math.MaxInt64 - 100},
		{name: "fits exactly", delta: 100, want: math.MaxInt64},
		{name: "full counter", delta: 1, wantErr: user.ErrStorageOverflow, want: math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Users.ChargeStorage(ctx, usr.ID, tt.delta)
			if tt.wantErr != nil {
				verr, ok := errors.Cause(err).(*core.ValidationError)
				require.Truef(t, ok, "want a validation error, got %v", err)
				assert.Equal(t, tt.wantErr, verr.Err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, env.Reload(t, usr).StorageUsed)
		})
	}
}

func TestService_ChargeStorage_concurrent(t *testing.T) {
	env := testutil.NewEnv(t)
	usr := testutil.CreateTeacher(t, env.UserRepo, "Teacher", "teacher@example.com")

	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errs <- env.Users.ChargeStorage(ctx, usr.ID, 10) }()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int64(n*10), env.Reload(t, usr).StorageUsed)
}

func TestService_StorageUsage(t *testing.T) {
	env := testutil.NewEnv(t, func(conf *core.Config) {
		conf.Quota.FreeStorageLimit = 1000
		conf.Quota.PremiumStorageLimit = 10000
	})
	usr := testutil.CreateTeacher(t, env.UserRepo, "Teacher", "teacher@example.com")

	require.NoError(t, env.Users.ChargeStorage(ctx, usr.ID, 250))
	usage, err := env.Users.StorageUsage(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, user.StorageUsage{Used: 250, Limit: 1000, Percent: 25}, usage)

	// charging is never refused, the limit is only reported
	require.NoError(t, env.Users.ChargeStorage(ctx, usr.ID, 1000))
	usage, err = env.Users.StorageUsage(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), usage.Used)
	assert.Equal(t, float64(100), usage.Percent)
	assert.True(t, usage.OverLimit)

	isPremium := true
	_, err = env.Users.Update(ctx, usr.ID, user.UpdateUser{Name: usr.Name, Email: usr.Email, IsPremium: &isPremium})
	require.NoError(t, err)
	usage, err = env.Users.StorageUsage(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), usage.Limit)
	assert.False(t, usage.OverLimit)
}

func TestService_SpendCredits(t *testing.T) {
	env := testutil.NewEnv(t)
	usr := testutil.CreateTeacher(t, env.UserRepo, "Teacher", "teacher@example.com") // 10 credits

	ok, err := env.Users.SpendCredits(ctx, usr.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.Users.SpendCredits(ctx, usr.ID, 7)
	require.NoError(t, err)
	assert.False(t, ok, "insufficient balance")
	assert.Equal(t, 6, env.Reload(t, usr).AICredits)

	ok, err = env.Users.SpendCredits(ctx, usr.ID, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_RefreshCredits(t *testing.T) {
	env := testutil.NewEnv(t)
	lastReset := time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		premium bool
		now     time.Time
		want    int
	}{
		{name: "free, same month", now: time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC), want: 3},
		{name: "free, next month", now: time.Date(2024, 6, 1, 0, 0, 1, 0, time.UTC), want: 10},
		{name: "premium, same day", premium: true, now: time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC), want: 3},
		{name: "premium, next day", premium: true, now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), want: 50},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := testutil.CreateTeacher(t, env.UserRepo, "Teacher", "teacher"+string(rune('a'+i))+"@example.com")
			require.NoError(t, env.UserRepo.ResetCredits(ctx, usr.ID, 3, lastReset))
			usr.IsPremium = tt.premium
			usr.AICredits = 3
			usr.LastCreditReset = lastReset

			setNow(t, tt.now)
			got, err := env.Users.RefreshCredits(ctx, usr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.AICredits)
			assert.Equal(t, tt.want, env.Reload(t, usr).AICredits)
		})
	}
}

func TestService_GrantRolesAndResetCredits(t *testing.T) {
	env := testutil.NewEnv(t)
	usr := testutil.CreateStudent(t, env.UserRepo, "Student", "student@example.com")

	usr, err := env.Users.GrantRoles(ctx, usr.ID, user.RoleTeacher, user.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleStudent, user.RoleTeacher}, usr.Roles)
	assert.True(t, usr.IsTeacher())

	_, err = env.Users.GrantRoles(ctx, usr.ID, "wizard:")
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok)

	_, err = env.Users.SpendCredits(ctx, usr.ID, 10)
	require.NoError(t, err)
	usr, err = env.Users.ResetCredits(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, env.Conf.Credits.FreeMonthly, usr.AICredits)
	assert.Equal(t, env.Conf.Credits.FreeMonthly, env.Reload(t, usr).AICredits)
}

func TestService_FindOrInvite(t *testing.T) {
	env := testutil.NewEnv(t)
	existing := testutil.CreateStudent(t, env.UserRepo, "Existing", "existing@example.com")

	usr, invited, err := env.Users.FindOrInvite(ctx, "EXISTING@example.com")
	require.NoError(t, err)
	assert.False(t, invited)
	assert.Equal(t, existing.ID, usr.ID)

	usr, invited, err = env.Users.FindOrInvite(ctx, "fresh@example.com")
	require.NoError(t, err)
	assert.True(t, invited)
	assert.Equal(t, "fresh", usr.Name)
	assert.Equal(t, user.StatusInvited, usr.Status)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.Equal(t, env.Conf.Credits.FreeMonthly, usr.AICredits)

	for _, bad := range []string{"", "@example.com", "nobody@", "plain"} {
		_, _, err = env.Users.FindOrInvite(ctx, bad)
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.Truef(t, ok, "%q should be rejected", bad)
	}
}

func TestUser_Can(t *testing.T) {
	tests := []struct {
		roles      []string
		manageAny  bool
		manageUser bool
	}{
		{roles: []string{user.RoleStudent}},
		{roles: []string{user.RoleTeacher}},
		{roles: []string{user.RoleAdmin}, manageUser: true},
		{roles: []string{user.RoleAdminOwner}, manageAny: true, manageUser: true},
		{roles: []string{user.RoleTeacher, user.RoleAdminSuper}, manageAny: true, manageUser: true},
	}
	for _, tt := range tests {
		usr := user.User{Roles: tt.roles}
		assert.Equal(t, tt.manageAny, usr.Can(user.CapManageAnyCourse), tt.roles)
		assert.Equal(t, tt.manageUser, usr.Can(user.CapManageUsers), tt.roles)
	}
}
