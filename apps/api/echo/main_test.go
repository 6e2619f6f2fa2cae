package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	echoapi "github.com/danielortegac/qlase/apps/api/echo"
	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/user"
	"github.com/danielortegac/qlase/tests"
)

const goodPwd = "Tr0ub4dor&3x"

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type testApp struct {
	*testutil.Env
	srv *echoapi.Server
}

func setup(t *testing.T) *testApp {
	t.Helper()
	env := testutil.NewEnv(t)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	srv := echoapi.NewServer(&echoapi.Deps{
		Conf:            env.Conf,
		Logger:          env.Logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         env.Users,
		CourseSvc:       env.Courses,
		NotificationSvc: env.Notifications,
		PublicationSvc:  env.Publications,
		Metrics:         env.Metrics.Handler(),
		DisableReqLogs:  true,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return &testApp{Env: env, srv: srv}
}

// do runs tt against the app and checks the status code, and the body when tt.wantData is set.
func (app *testApp) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.srv.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User, origIat ...int64) string {
	t.Helper()
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr, origIat...))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestServer_home(t *testing.T) {
	app := setup(t)

	req, rec := newAuthRequest(http.MethodGet, "/", "")
	app.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Welcome to QLASE API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	app := setup(t)
	app.Metrics.StorageCharged(core.ChargeSubmission, 42)

	req, rec := newAuthRequest(http.MethodGet, "/metrics", "")
	app.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `qlase_storage_charged_bytes_total{source="submission"} 42`)
}
