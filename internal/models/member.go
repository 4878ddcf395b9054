package models

import "time"

// MemberCompositeKey identifies a member by server and user
type MemberCompositeKey struct {
	Server string `json:"server" bson:"server"`
	User   string `json:"user" bson:"user"`
}

// Member is a user's membership of a server
type Member struct {
	ID       MemberCompositeKey `json:"_id" bson:"_id"`
	JoinedAt time.Time          `json:"joined_at" bson:"joined_at"`
	Nickname string             `json:"nickname,omitempty" bson:"nickname,omitempty"`
	Avatar   *File              `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Roles    []string           `json:"roles,omitempty" bson:"roles,omitempty"`
	Timeout  *time.Time         `json:"timeout,omitempty" bson:"timeout,omitempty"`
}

// InTimeout reports whether the member is timed out at now
func (m *Member) InTimeout(now time.Time) bool {
	return m.Timeout != nil && m.Timeout.After(now)
}

// HasRole reports whether the member holds the role
func (m *Member) HasRole(id string) bool {
	for _, r := range m.Roles {
		if r == id {
			return true
		}
	}
	return false
}

// FieldsMember names optional member fields that can be cleared
type FieldsMember string

const (
	FieldsMemberNickname FieldsMember = "Nickname"
	FieldsMemberAvatar   FieldsMember = "Avatar"
	FieldsMemberRoles    FieldsMember = "Roles"
	FieldsMemberTimeout  FieldsMember = "Timeout"
)

// PartialMember carries the fields of a member update
type PartialMember struct {
	Nickname *string    `json:"nickname,omitempty"`
	Avatar   *File      `json:"avatar,omitempty"`
	Roles    *[]string  `json:"roles,omitempty"`
	Timeout  *time.Time `json:"timeout,omitempty"`
}

// Apply merges the set fields of p into m
func (m *Member) Apply(p PartialMember) {
	if p.Nickname != nil {
		m.Nickname = *p.Nickname
	}
	if p.Avatar != nil {
		m.Avatar = p.Avatar
	}
	if p.Roles != nil {
		m.Roles = *p.Roles
	}
	if p.Timeout != nil {
		t := *p.Timeout
		m.Timeout = &t
	}
}

// Remove clears a single optional field
func (m *Member) Remove(field FieldsMember) {
	switch field {
	case FieldsMemberNickname:
		m.Nickname = ""
	case FieldsMemberAvatar:
		m.Avatar = nil
	case FieldsMemberRoles:
		m.Roles = nil
	case FieldsMemberTimeout:
		m.Timeout = nil
	}
}
