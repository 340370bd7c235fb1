// Package authz maps roles to the capabilities they grant.
//
// Roles are not ordered: each role's set is listed explicitly, and an admin does not
// implicitly hold a teacher's or a student's capabilities unless listed.
package authz

import (
	"sort"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
)

type Capability string

const (
	ViewOwnProgress       Capability = "view_own_progress"
	ViewFinancialReport   Capability = "view_financial_report"
	ViewPerformanceReport Capability = "view_performance_report"
	ViewSystemAnalytics   Capability = "view_system_analytics"
	ManageSchool          Capability = "manage_school"
	ChangePassword        Capability = "change_password"
)

var AllCapabilities = []Capability{
	ViewOwnProgress, ViewFinancialReport, ViewPerformanceReport, ViewSystemAnalytics, ManageSchool, ChangePassword,
}

// Set is a set of capabilities. Sets handed out by this package are copies; changing one
// grants nothing.
type Set map[Capability]struct{}

func newSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s Set) clone() Set {
	cp := make(Set, len(s))
	for c := range s {
		cp[c] = struct{}{}
	}
	return cp
}

func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Slice returns the capabilities sorted by name.
func (s Set) Slice() []Capability {
	caps := make([]Capability, 0, len(s))
	for c := range s {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

var (
	permissions = map[account.Role]Set{
		account.RoleStudent: newSet(ViewOwnProgress, ChangePassword),
		account.RoleParent:  newSet(ViewOwnProgress, ChangePassword),
		account.RoleTeacher: newSet(ViewPerformanceReport, ChangePassword),
		account.RoleAdmin:   newSet(ViewFinancialReport, ViewPerformanceReport, ManageSchool, ChangePassword),
		account.RoleSuperAdmin: newSet(
			ViewFinancialReport, ViewPerformanceReport, ViewSystemAnalytics, ManageSchool, ChangePassword,
		),
	}

	forcedChange = newSet(ChangePassword)
	none         = newSet()
)

// PermittedFor returns the capabilities of role. Unknown roles get none.
func PermittedFor(role account.Role) Set {
	return permittedFor(role).clone()
}

func permittedFor(role account.Role) Set {
	if s, ok := permissions[role]; ok {
		return s
	}
	return none
}

// Effective returns what p may do right now. A principal that must change its password
// may only do that.
func Effective(p *account.Principal) Set {
	return effective(p).clone()
}

func effective(p *account.Principal) Set {
	if p == nil {
		return none
	}
	if p.MustChangePassword {
		return forcedChange
	}
	return permittedFor(p.Role)
}

// Allows reports whether p holds capability c. A nil principal holds nothing.
func Allows(p *account.Principal, c Capability) bool {
	return effective(p).Has(c)
}

// Denied is the error reported for every refused capability, whatever the reason.
func Denied() error { return core.ErrAuthorizationDenied }

// Check is Allows as an error.
func Check(p *account.Principal, c Capability) error {
	if !Allows(p, c) {
		return Denied()
	}
	return nil
}

// ParseCapability returns the capability named s, if any.
func ParseCapability(s string) (Capability, bool) {
	for _, c := range AllCapabilities {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
