package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/MagetoJ/EduKE-sub001/apps/api/echo"
	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/token"
	"github.com/MagetoJ/EduKE-sub001/services/email"
	"github.com/MagetoJ/EduKE-sub001/services/logger"
	"github.com/MagetoJ/EduKE-sub001/services/metrics"
	"github.com/MagetoJ/EduKE-sub001/services/ratelimit"
	"github.com/MagetoJ/EduKE-sub001/storage/database/inmem"
	"github.com/MagetoJ/EduKE-sub001/tests"
)

const (
	adminEmail = "admin@greenhills.ac.ke"
	adminPwd   = "admin-pass-2024"
)

type testEnv struct {
	app    Server
	repo   account.Repository
	mail   *emailsvc.ConsoleServiceMock
	school account.School
	admin  account.Account
}

type envOpts struct {
	rateLimit int
}

func setup(t *testing.T, opts ...envOpts) *testEnv {
	opt := envOpts{rateLimit: 1000}
	if len(opts) > 0 {
		opt = opts[0]
	}

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	// set up DB & repos
	db := inmemdb.Open()
	repo := inmemdb.NewAccountRepository(db)
	iss := token.NewIssuer(token.OptionsFromConfig(conf), repo, inmemdb.NewTokenRepository(db), inmemdb.NewSessionRepository(db))

	// set up services
	validate, translator := core.NewValidator()
	account.RegisterValidators(validate, translator)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	mtrcs := metrics.New("eduke")
	authSvc := auth.NewService(auth.Deps{
		Conf:     conf,
		Validate: validate,
		Accounts: repo,
		Issuer:   iss,
		Mail:     mailSvc,
		Logger:   logger,
		Events:   mtrcs,
	})

	// set up server
	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		AuthSvc:    authSvc,
		Validate:   validate,
		Translator: translator,
		Limiter:    ratelimit.NewMemoryLimiter(opt.rateLimit, 15*time.Minute),
		Metrics:    mtrcs,
	})
	t.Cleanup(func() { _ = app.Close() })

	school, admin := testutil.CreateSchool(t, repo, "Green Hills Academy", adminEmail, adminPwd)
	return &testEnv{app: app, repo: repo, mail: mailSvc, school: school, admin: admin}
}

type httpErr struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (env *testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
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

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := env.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func (env *testEnv) login(t *testing.T, email, pwd string) GrantResponse {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/auth/login", "", marchallObj(t, LoginRequest{Email: email, Password: pwd}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var grant GrantResponse
	unmarshal(t, rec, &grant)
	return grant
}

var tokenRegexp = regexp.MustCompile(`token=([0-9a-f]{64})`)

func (env *testEnv) tokenFromMail(t *testing.T, to string) string {
	t.Helper()
	msg, ok := env.mail.LastMessageTo(to)
	require.True(t, ok, "no email sent to %s", to)
	m := tokenRegexp.FindStringSubmatch(msg.TextContent)
	require.Len(t, m, 2, "no token in email to %s", to)
	return m[1]
}
