package models

import "math"

// Category groups channels in a server sidebar
type Category struct {
	ID       string   `json:"id" bson:"id"`
	Title    string   `json:"title" bson:"title"`
	Channels []string `json:"channels" bson:"channels"`
}

// SystemMessageChannels binds system messages to channels
type SystemMessageChannels struct {
	UserJoined string `json:"user_joined,omitempty" bson:"user_joined,omitempty"`
	UserLeft   string `json:"user_left,omitempty" bson:"user_left,omitempty"`
	UserKicked string `json:"user_kicked,omitempty" bson:"user_kicked,omitempty"`
	UserBanned string `json:"user_banned,omitempty" bson:"user_banned,omitempty"`
}

// Role is a server role
type Role struct {
	Name        string        `json:"name" bson:"name"`
	Permissions OverrideField `json:"permissions" bson:"permissions"`
	Colour      string        `json:"colour,omitempty" bson:"colour,omitempty"`
	Hoist       bool          `json:"hoist,omitempty" bson:"hoist,omitempty"`
	Rank        int64         `json:"rank" bson:"rank"`
}

// Server is a community with channels, roles and members
type Server struct {
	ID                 string                 `json:"_id" bson:"_id"`
	Owner              string                 `json:"owner" bson:"owner"`
	Name               string                 `json:"name" bson:"name"`
	Description        string                 `json:"description,omitempty" bson:"description,omitempty"`
	Channels           []string               `json:"channels" bson:"channels"`
	Categories         []Category             `json:"categories,omitempty" bson:"categories,omitempty"`
	SystemMessages     *SystemMessageChannels `json:"system_messages,omitempty" bson:"system_messages,omitempty"`
	Roles              map[string]Role        `json:"roles,omitempty" bson:"roles,omitempty"`
	DefaultPermissions int64                  `json:"default_permissions" bson:"default_permissions"`
	Icon               *File                  `json:"icon,omitempty" bson:"icon,omitempty"`
	Banner             *File                  `json:"banner,omitempty" bson:"banner,omitempty"`
	Flags              int32                  `json:"flags,omitempty" bson:"flags,omitempty"`
	NSFW               bool                   `json:"nsfw,omitempty" bson:"nsfw,omitempty"`
	Analytics          bool                   `json:"analytics,omitempty" bson:"analytics,omitempty"`
	Discoverable       bool                   `json:"discoverable,omitempty" bson:"discoverable,omitempty"`
}

// MemberRank returns the effective rank of a member: the lowest rank
// among the roles they hold, or math.MaxInt64 when they hold none.
func (s *Server) MemberRank(m *Member) int64 {
	rank := int64(math.MaxInt64)
	for _, id := range m.Roles {
		if role, ok := s.Roles[id]; ok && role.Rank < rank {
			rank = role.Rank
		}
	}
	return rank
}

// FieldsServer names optional server fields that can be cleared
type FieldsServer string

const (
	FieldsServerDescription    FieldsServer = "Description"
	FieldsServerCategories     FieldsServer = "Categories"
	FieldsServerSystemMessages FieldsServer = "SystemMessages"
	FieldsServerIcon           FieldsServer = "Icon"
	FieldsServerBanner         FieldsServer = "Banner"
)

// PartialServer carries the fields of a server update
type PartialServer struct {
	Owner              *string                `json:"owner,omitempty"`
	Name               *string                `json:"name,omitempty"`
	Description        *string                `json:"description,omitempty"`
	Channels           *[]string              `json:"channels,omitempty"`
	Categories         *[]Category            `json:"categories,omitempty"`
	SystemMessages     *SystemMessageChannels `json:"system_messages,omitempty"`
	DefaultPermissions *int64                 `json:"default_permissions,omitempty"`
	Icon               *File                  `json:"icon,omitempty"`
	Banner             *File                  `json:"banner,omitempty"`
	Flags              *int32                 `json:"flags,omitempty"`
	NSFW               *bool                  `json:"nsfw,omitempty"`
	Analytics          *bool                  `json:"analytics,omitempty"`
	Discoverable       *bool                  `json:"discoverable,omitempty"`
}

// Apply merges the set fields of p into s
func (s *Server) Apply(p PartialServer) {
	if p.Owner != nil {
		s.Owner = *p.Owner
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Channels != nil {
		s.Channels = *p.Channels
	}
	if p.Categories != nil {
		s.Categories = *p.Categories
	}
	if p.SystemMessages != nil {
		s.SystemMessages = p.SystemMessages
	}
	if p.DefaultPermissions != nil {
		s.DefaultPermissions = *p.DefaultPermissions
	}
	if p.Icon != nil {
		s.Icon = p.Icon
	}
	if p.Banner != nil {
		s.Banner = p.Banner
	}
	if p.Flags != nil {
		s.Flags = *p.Flags
	}
	if p.NSFW != nil {
		s.NSFW = *p.NSFW
	}
	if p.Analytics != nil {
		s.Analytics = *p.Analytics
	}
	if p.Discoverable != nil {
		s.Discoverable = *p.Discoverable
	}
}

// Remove clears a single optional field
func (s *Server) Remove(field FieldsServer) {
	switch field {
	case FieldsServerDescription:
		s.Description = ""
	case FieldsServerCategories:
		s.Categories = nil
	case FieldsServerSystemMessages:
		s.SystemMessages = nil
	case FieldsServerIcon:
		s.Icon = nil
	case FieldsServerBanner:
		s.Banner = nil
	}
}

// FieldsRole names optional role fields that can be cleared
type FieldsRole string

const FieldsRoleColour FieldsRole = "Colour"

// PartialRole carries the fields of a role update
type PartialRole struct {
	Name        *string        `json:"name,omitempty"`
	Permissions *OverrideField `json:"permissions,omitempty"`
	Colour      *string        `json:"colour,omitempty"`
	Hoist       *bool          `json:"hoist,omitempty"`
	Rank        *int64         `json:"rank,omitempty"`
}

// Apply merges the set fields of p into r
func (r *Role) Apply(p PartialRole) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Permissions != nil {
		r.Permissions = *p.Permissions
	}
	if p.Colour != nil {
		r.Colour = *p.Colour
	}
	if p.Hoist != nil {
		r.Hoist = *p.Hoist
	}
	if p.Rank != nil {
		r.Rank = *p.Rank
	}
}

// Remove clears a single optional field
func (r *Role) Remove(field FieldsRole) {
	if field == FieldsRoleColour {
		r.Colour = ""
	}
}
