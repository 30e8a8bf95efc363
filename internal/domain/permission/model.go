package permission

import (
	"slices"
	"strings"
	"time"
)

// PrincipalType identifies what kind of grantee an ACL entry names.
type PrincipalType string

const (
	PrincipalUser PrincipalType = "user"
	PrincipalRole PrincipalType = "role"
	PrincipalTeam PrincipalType = "team"
)

// Valid reports whether t is a known principal type.
func (t PrincipalType) Valid() bool {
	switch t {
	case PrincipalUser, PrincipalRole, PrincipalTeam:
		return true
	}
	return false
}

// Kind is one of the three rights an ACL can grant.
type Kind string

const (
	KindRead  Kind = "read"
	KindEdit  Kind = "edit"
	KindShare Kind = "share"
)

// Valid reports whether k is a known permission kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRead, KindEdit, KindShare:
		return true
	}
	return false
}

// Set is the effective or granted rights on a region.
type Set struct {
	Read  bool `json:"read"`
	Edit  bool `json:"edit"`
	Share bool `json:"share"`
}

// All grants every right.
var All = Set{Read: true, Edit: true, Share: true}

// Has reports whether the set grants kind.
func (s Set) Has(kind Kind) bool {
	switch kind {
	case KindRead:
		return s.Read
	case KindEdit:
		return s.Edit
	case KindShare:
		return s.Share
	}
	return false
}

// Union ORs two sets.
func (s Set) Union(other Set) Set {
	return Set{
		Read:  s.Read || other.Read,
		Edit:  s.Edit || other.Edit,
		Share: s.Share || other.Share,
	}
}

// Entry is a single ACL grant on a region.
type Entry struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	RegionID      string        `json:"region_id"`
	PrincipalType PrincipalType `json:"principal_type"`
	PrincipalID   string        `json:"principal_id"`
	Permissions   Set           `json:"permissions"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Principal is the acting identity: a user plus its role and team
// memberships within a tenant.
type Principal struct {
	TenantID string   `json:"tenant_id"`
	UserID   string   `json:"user_id"`
	Roles    []string `json:"roles,omitempty"`
	Teams    []string `json:"teams,omitempty"`
}

// Matches reports whether e grants something to p.
func (p Principal) Matches(e Entry) bool {
	switch e.PrincipalType {
	case PrincipalUser:
		return e.PrincipalID == p.UserID
	case PrincipalRole:
		return slices.Contains(p.Roles, e.PrincipalID)
	case PrincipalTeam:
		return slices.Contains(p.Teams, e.PrincipalID)
	}
	return false
}

// Key is a stable identity for caching; membership order does not matter.
func (p Principal) Key() string {
	roles := slices.Clone(p.Roles)
	teams := slices.Clone(p.Teams)
	slices.Sort(roles)
	slices.Sort(teams)
	return p.TenantID + "|" + p.UserID + "|" + strings.Join(roles, ",") + "|" + strings.Join(teams, ",")
}

// Resource is the ownership scope of the thing being checked.
type Resource struct {
	ID       string
	TenantID string
	OwnerID  string
}
