package account

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Role is the single role an Account holds. Roles are not hierarchical.
type Role string

const (
	RoleStudent    Role = "student"
	RoleParent     Role = "parent"
	RoleTeacher    Role = "teacher"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var AllRoles = []Role{RoleStudent, RoleParent, RoleTeacher, RoleAdmin, RoleSuperAdmin}

var errUnknownRole = errors.New("unknown role")

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func ParseRole(s string) (Role, error) {
	if r := Role(s); r.IsValid() {
		return r, nil
	}
	return "", errors.Wrap(errUnknownRole, s)
}

// Curricula supported at school registration.
var Curricula = []string{"cbc", "844", "british", "american", "ib"}

const DefaultCurriculum = "cbc"

type SchoolStatus string

const (
	SchoolActive    SchoolStatus = "active"
	SchoolSuspended SchoolStatus = "suspended"
)

// School is a tenant. Every account except super admins belongs to exactly one.
type School struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Curriculum string       `json:"curriculum"`
	Status     SchoolStatus `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
}

func (s School) IsActive() bool { return s.Status == SchoolActive }

type Account struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenantId,omitempty"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone,omitempty"`
	Role               Role      `json:"role"`
	PasswordHash       []byte    `json:"-"`
	MustChangePassword bool      `json:"mustChangePassword"`
	EmailVerified      bool      `json:"emailVerified"`
	Disabled           bool      `json:"disabled"`
	CreatedAt          time.Time `json:"createdAt"` // UTC
	UpdatedAt          time.Time `json:"updatedAt"` // UTC
	LastLogin          time.Time `json:"lastLogin"` // UTC
}

// HashCost is the bcrypt cost used for new password hashes.
var HashCost = bcrypt.DefaultCost

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), HashCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a *Account) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }

// Principal projects the account for an authenticated session.
func (a *Account) Principal(sessionID string) Principal {
	return Principal{
		AccountID:          a.ID,
		TenantID:           a.TenantID,
		Name:               a.Name,
		Email:              a.Email,
		Role:               a.Role,
		MustChangePassword: a.MustChangePassword,
		EmailVerified:      a.EmailVerified,
		SessionID:          sessionID,
	}
}

// Principal is the authenticated identity derived from a live session and a fresh account lookup.
type Principal struct {
	AccountID          string `json:"id"`
	TenantID           string `json:"tenantId,omitempty"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               Role   `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
	EmailVerified      bool   `json:"emailVerified"`
	SessionID          string `json:"-"`
}

// CanActInTenant reports whether p may act on resources of tenantID.
// Super admins span all tenants.
func (p Principal) CanActInTenant(tenantID string) bool {
	return p.Role == RoleSuperAdmin || (p.TenantID != "" && p.TenantID == tenantID)
}

var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

// PrepareDummyHash computes the hash CompareDummyPassword checks against. Call it at
// startup, once HashCost is final, so no login pays for it.
func PrepareDummyHash() {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), HashCost)
	})
}

// CompareDummyPassword spends the same time as CheckPassword on an account that does not exist.
func CompareDummyPassword(pwd string) {
	PrepareDummyHash()
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pwd))
}
