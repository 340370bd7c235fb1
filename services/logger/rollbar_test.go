package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	p := account.Principal{AccountID: "acc-1", Role: account.RoleTeacher, TenantID: "s1", Email: "t@x.com"}
	logger.Error("something broke", errors.New("boom"), map[string]interface{}{"path": "/api/auth/me"}, p)
	logger.Info("auth.login", map[string]interface{}{"result": "ok"})

	out := buf.String()
	assert.Contains(t, out, "ERROR something broke")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "path:/api/auth/me")
	assert.Contains(t, out, "principal=acc-1 role=teacher tenant=s1")
	assert.NotContains(t, out, "t@x.com")
	assert.Contains(t, out, "INFO auth.login")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	p := account.Principal{AccountID: "acc-1"}
	args := logger.prepare("msg", []interface{}{errors.New("e"), p, account.Principal{AccountID: "acc-2"}})
	assert.Len(t, args, 2, "principals are not forwarded as extras")
	assert.Equal(t, "msg", args[0])
}
