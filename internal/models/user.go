package models

// RelationshipStatus describes how one user relates to another
type RelationshipStatus string

const (
	RelationshipNone         RelationshipStatus = "None"
	RelationshipUser         RelationshipStatus = "User"
	RelationshipFriend       RelationshipStatus = "Friend"
	RelationshipOutgoing     RelationshipStatus = "Outgoing"
	RelationshipIncoming     RelationshipStatus = "Incoming"
	RelationshipBlocked      RelationshipStatus = "Blocked"
	RelationshipBlockedOther RelationshipStatus = "BlockedOther"
)

// Presence is the user-selected online state
type Presence string

const (
	PresenceOnline    Presence = "Online"
	PresenceIdle      Presence = "Idle"
	PresenceFocus     Presence = "Focus"
	PresenceBusy      Presence = "Busy"
	PresenceInvisible Presence = "Invisible"
)

// User flags
const (
	UserFlagSuspended int32 = 1
	UserFlagDeleted   int32 = 2
	UserFlagBanned    int32 = 4
	UserFlagSpam      int32 = 8
)

// Relationship is an entry in a user's relation list
type Relationship struct {
	ID     string             `json:"_id" bson:"_id"`
	Status RelationshipStatus `json:"status" bson:"status"`
}

// UserStatus is the custom status of a user
type UserStatus struct {
	Text     string   `json:"text,omitempty" bson:"text,omitempty"`
	Presence Presence `json:"presence,omitempty" bson:"presence,omitempty"`
}

// UserProfile is the profile page of a user
type UserProfile struct {
	Content    string `json:"content,omitempty" bson:"content,omitempty"`
	Background *File  `json:"background,omitempty" bson:"background,omitempty"`
}

// BotInformation marks a user as a bot
type BotInformation struct {
	Owner string `json:"owner" bson:"owner"`
}

// User represents a platform account
type User struct {
	ID            string          `json:"_id" bson:"_id"`
	Username      string          `json:"username" bson:"username"`
	Discriminator string          `json:"discriminator,omitempty" bson:"discriminator,omitempty"`
	DisplayName   string          `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Avatar        *File           `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Relations     []Relationship  `json:"relations,omitempty" bson:"relations,omitempty"`
	Badges        int32           `json:"badges,omitempty" bson:"badges,omitempty"`
	Status        *UserStatus     `json:"status,omitempty" bson:"status,omitempty"`
	Profile       *UserProfile    `json:"profile,omitempty" bson:"profile,omitempty"`
	Flags         int32           `json:"flags,omitempty" bson:"flags,omitempty"`
	Privileged    bool            `json:"privileged,omitempty" bson:"privileged,omitempty"`
	Bot           *BotInformation `json:"bot,omitempty" bson:"bot,omitempty"`

	// Relationship and Online are computed per viewer and never stored
	Relationship RelationshipStatus `json:"relationship,omitempty" bson:"-"`
	Online       bool               `json:"online" bson:"-"`
}

// IsBot reports whether the account is a bot
func (u *User) IsBot() bool {
	return u.Bot != nil
}

// HasFlag reports whether the given account flag is set
func (u *User) HasFlag(flag int32) bool {
	return u.Flags&flag == flag
}

// RelationshipWith returns the relationship u has with the user identified by id
func (u *User) RelationshipWith(id string) RelationshipStatus {
	if u.ID == id {
		return RelationshipUser
	}
	for _, r := range u.Relations {
		if r.ID == id {
			return r.Status
		}
	}
	return RelationshipNone
}

// Presence returns the user's selected presence, empty if unset
func (u *User) Presence() Presence {
	if u.Status == nil {
		return ""
	}
	return u.Status.Presence
}

// Foreign returns a copy of the user safe to hand to other users.
// Profile and relations are stripped; an invisible user appears offline.
func (u User) Foreign() User {
	u.Profile = nil
	u.Relations = nil

	if u.Status != nil && u.Status.Presence == PresenceInvisible {
		u.Status = nil
		u.Online = false
	}

	return u
}

// WithRelationship returns the foreign view of u as seen by perspective
func (u User) WithRelationship(perspective *User) User {
	f := u.Foreign()
	f.Relationship = perspective.RelationshipWith(u.ID)
	return f
}

// FieldsUser names optional user fields that can be cleared
type FieldsUser string

const (
	FieldsUserAvatar            FieldsUser = "Avatar"
	FieldsUserStatusText        FieldsUser = "StatusText"
	FieldsUserStatusPresence    FieldsUser = "StatusPresence"
	FieldsUserProfileContent    FieldsUser = "ProfileContent"
	FieldsUserProfileBackground FieldsUser = "ProfileBackground"
	FieldsUserDisplayName       FieldsUser = "DisplayName"
)

// PartialUser carries the fields of a user update
type PartialUser struct {
	Username      *string         `json:"username,omitempty"`
	Discriminator *string         `json:"discriminator,omitempty"`
	DisplayName   *string         `json:"display_name,omitempty"`
	Avatar        *File           `json:"avatar,omitempty"`
	Relations     *[]Relationship `json:"relations,omitempty"`
	Badges        *int32          `json:"badges,omitempty"`
	Status        *UserStatus     `json:"status,omitempty"`
	Profile       *UserProfile    `json:"profile,omitempty"`
	Flags         *int32          `json:"flags,omitempty"`
	Privileged    *bool           `json:"privileged,omitempty"`
	Bot           *BotInformation `json:"bot,omitempty"`
	Online        *bool           `json:"online,omitempty"`
}

// Apply merges the set fields of p into u
func (u *User) Apply(p PartialUser) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Discriminator != nil {
		u.Discriminator = *p.Discriminator
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Avatar != nil {
		u.Avatar = p.Avatar
	}
	if p.Relations != nil {
		u.Relations = *p.Relations
	}
	if p.Badges != nil {
		u.Badges = *p.Badges
	}
	if p.Status != nil {
		u.Status = p.Status
	}
	if p.Profile != nil {
		u.Profile = p.Profile
	}
	if p.Flags != nil {
		u.Flags = *p.Flags
	}
	if p.Privileged != nil {
		u.Privileged = *p.Privileged
	}
	if p.Bot != nil {
		u.Bot = p.Bot
	}
	if p.Online != nil {
		u.Online = *p.Online
	}
}

// Remove clears a single optional field
func (u *User) Remove(field FieldsUser) {
	switch field {
	case FieldsUserAvatar:
		u.Avatar = nil
	case FieldsUserStatusText:
		if u.Status != nil {
			u.Status.Text = ""
		}
	case FieldsUserStatusPresence:
		if u.Status != nil {
			u.Status.Presence = ""
		}
	case FieldsUserProfileContent:
		if u.Profile != nil {
			u.Profile.Content = ""
		}
	case FieldsUserProfileBackground:
		if u.Profile != nil {
			u.Profile.Background = nil
		}
	case FieldsUserDisplayName:
		u.DisplayName = ""
	}
}
