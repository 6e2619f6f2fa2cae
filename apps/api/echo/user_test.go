package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/danielortegac/qlase/apps/api/echo"
	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.UserRepo, "Ada", "ada@test.cd", goodPwd, []string{user.RoleStudent}, user.StatusActive)
	testutil.CreateUser(t, app.UserRepo, "Off", "off@test.cd", goodPwd, []string{user.RoleStudent}, user.StatusInactive)

	body := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: pwd})
	}
	tests := []httpTest{
		{
			name:     "missing fields",
			body:     body("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name:     "unknown email",
			body:     body("nobody@test.cd", goodPwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "wrong password",
			body:     body("ada@test.cd", "nope"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "deactivated",
			body:     body("off@test.cd", goodPwd),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: user.ErrAccountInactive.Error()}),
		},
		{
			name:     "email is case insensitive",
			body:     body(" ADA@test.cd ", goodPwd),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/users/login"
			rec := app.do(t, tt)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, "ada@test.cd", resp.User.Email)
			assert.False(t, resp.User.LastLogin.IsZero())

			// the token works
			app.do(t, httpTest{method: http.MethodGet, path: "/v1/users/me", token: resp.Token, wantCode: http.StatusOK})
		})
	}
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	testutil.CreateStudent(t, app.UserRepo, "Taken", "taken@test.cd")

	body := func(email string, premium bool, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New Comer",
			Email:           email,
			Password:        goodPwd,
			PasswordConfirm: goodPwd,
			Roles:           roles,
			IsPremium:       premium,
		})
	}
	tests := []httpTest{
		{
			name:     "cannot register as admin",
			body:     body("admin@test.cd", false, user.RoleAdmin),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name:     "email taken",
			body:     body("taken@test.cd", false),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name:     "weak password",
			body:     marchallObj(t, user.NewUser{Name: "Weak", Email: "weak@test.cd", Password: "12345678", PasswordConfirm: "12345678"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password cannot be entirely numeric"}),
		},
		{
			name:     "teacher, premium flag ignored",
			body:     body("teacher@test.cd", true, user.RoleTeacher),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/users/register"
			rec := app.do(t, tt)
			if tt.wantCode != http.StatusCreated {
				return
			}

			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.True(t, resp.User.IsTeacher())
			assert.False(t, resp.User.IsPremium)
			assert.Equal(t, app.Conf.Credits.FreeMonthly, resp.User.AICredits)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateStudent(t, app.UserRepo, "Ada", "ada@test.cd")
	gone := testutil.CreateStudent(t, app.UserRepo, "Gone", "gone@test.cd")
	off := testutil.CreateUser(t, app.UserRepo, "Off", "off@test.cd", "", []string{user.RoleStudent}, user.StatusInactive)

	goneToken := getToken(t, app.Conf, gone)
	require.NoError(t, app.Users.Delete(context.Background(), gone.ID))

	expired := *app.Conf
	expired.Server.JWTExpirationDelta = -time.Minute
	otherKey := *app.Conf
	otherKey.SecretKey = "not the key"

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "garbage token", token: "garbage", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "expired token", token: getToken(t, &expired, ada), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "wrong key", token: getToken(t, &otherKey, ada), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "deleted user", token: goneToken, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})},
		{name: "deactivated user", token: getToken(t, app.Conf, off), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "ok", token: getToken(t, app.Conf, ada), wantCode: http.StatusOK, wantData: marchallObj(t, app.Reload(t, ada))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodGet, "/v1/users/me"
			app.do(t, tt)
		})
	}
}

func Test_userApi_myStorage(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateTeacher(t, app.UserRepo, "Teach", "teach@test.cd")
	require.NoError(t, app.Users.ChargeStorage(context.Background(), teacher.ID, app.Conf.Quota.FreeStorageLimit/4))

	app.do(t, httpTest{
		method:   http.MethodGet,
		path:     "/v1/users/me/storage",
		token:    getToken(t, app.Conf, teacher),
		wantCode: http.StatusOK,
		wantData: marchallObj(t, user.StorageUsage{
			Used:    app.Conf.Quota.FreeStorageLimit / 4,
			Limit:   app.Conf.Quota.FreeStorageLimit,
			Percent: 25,
		}),
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateStudent(t, app.UserRepo, "Ada", "ada@test.cd")
	stale := time.Now().Add(-app.Conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "refresh expired", token: getToken(t, app.Conf, ada, stale), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "ok", token: getToken(t, app.Conf, ada), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/users/token-refresh"
			rec := app.do(t, tt)
			if tt.wantCode == http.StatusOK {
				var resp echoapi.TokenResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	now := time.Now()
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "admin@test.cd", "", []string{user.RoleAdmin}, user.StatusActive, now)
	teacher := testutil.CreateUser(t, app.UserRepo, "Teach", "teach@test.cd", "", []string{user.RoleTeacher}, user.StatusActive, now.Add(time.Minute))
	student := testutil.CreateUser(t, app.UserRepo, "Stud", "stud@test.cd", "", []string{user.RoleStudent}, user.StatusActive, now.Add(2*time.Minute))

	adminToken := getToken(t, app.Conf, admin)
	tests := []httpTest{
		{name: "students cannot list users", path: "/v1/users", token: getToken(t, app.Conf, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "teachers cannot list users", path: "/v1/users", token: getToken(t, app.Conf, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name:     "newest first by default",
			path:     "/v1/users",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{student, teacher, admin}),
		},
		{
			name:     "by role, ordered by name",
			path:     "/v1/users?role=teacher:&role=student:&ordering=name",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{student, teacher}),
		},
		{
			name:     "search",
			path:     "/v1/users?search=TEACH",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{teacher}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			app.do(t, tt)
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)
	owner := testutil.CreateUser(t, app.UserRepo, "Owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, user.StatusActive)
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "admin@test.cd", "", []string{user.RoleAdmin}, user.StatusActive)
	ada := testutil.CreateStudent(t, app.UserRepo, "Ada", "ada@test.cd")
	bob := testutil.CreateStudent(t, app.UserRepo, "Bob", "bob@test.cd")

	adaToken := getToken(t, app.Conf, ada)
	adminToken := getToken(t, app.Conf, admin)
	path := func(usr user.User) string { return "/v1/users/" + usr.ID }
	premium := true

	tests := []httpTest{
		{name: "self", method: http.MethodGet, path: path(ada), token: adaToken, wantCode: http.StatusOK, wantData: marchallObj(t, ada)},
		{name: "someone else", method: http.MethodGet, path: path(bob), token: adaToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "admin reads anyone", method: http.MethodGet, path: path(bob), token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, bob)},
		{name: "unknown id", method: http.MethodGet, path: "/v1/users/nope", token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			name:     "self cannot become premium",
			method:   http.MethodPut,
			path:     path(ada),
			body:     marchallObj(t, user.UpdateUser{IsPremium: &premium}),
			token:    adaToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "admin cannot grant a higher role",
			method:   http.MethodPut,
			path:     path(bob),
			body:     marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAdminSuper}}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{name: "student cannot delete", method: http.MethodDelete, path: path(ada), token: adaToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin cannot delete self", method: http.MethodDelete, path: path(admin), token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin cannot delete a higher admin", method: http.MethodDelete, path: path(owner), token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.do(t, tt)
		})
	}

	t.Run("self renames", func(t *testing.T) {
		rec := app.do(t, httpTest{
			method:   http.MethodPut,
			path:     path(ada),
			body:     []byte(`{"name": "  Ada L. "}`),
			token:    adaToken,
			wantCode: http.StatusOK,
		})
		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, "Ada L.", got.Name)
		assert.Equal(t, ada.Email, got.Email)
	})

	t.Run("admin upgrades and deletes", func(t *testing.T) {
		rec := app.do(t, httpTest{
			method:   http.MethodPut,
			path:     path(bob),
			body:     marchallObj(t, user.UpdateUser{IsPremium: &premium, Roles: []string{user.RoleTeacher}}),
			token:    adminToken,
			wantCode: http.StatusOK,
		})
		var got user.User
		unmarshal(t, rec, &got)
		assert.True(t, got.IsPremium)
		assert.Equal(t, []string{user.RoleTeacher}, got.Roles)

		app.do(t, httpTest{method: http.MethodDelete, path: path(bob), token: adminToken, wantCode: http.StatusNoContent})
		_, err := app.Users.GetByID(context.Background(), bob.ID)
		assert.True(t, core.IsNotFound(err))
	})
}
