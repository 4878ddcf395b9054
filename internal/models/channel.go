package models

import "errors"

// ErrInvalidOperation is returned when an operation does not apply to a channel variant
var ErrInvalidOperation = errors.New("invalid operation for channel type")

// ChannelType discriminates the channel variants
type ChannelType string

const (
	ChannelTypeSavedMessages ChannelType = "SavedMessages"
	ChannelTypeDirectMessage ChannelType = "DirectMessage"
	ChannelTypeGroup         ChannelType = "Group"
	ChannelTypeText          ChannelType = "TextChannel"
	ChannelTypeVoice         ChannelType = "VoiceChannel"
)

// Channel is a tagged union of the five channel variants. Only the fields
// relevant to ChannelType are populated:
//
//	SavedMessages: User
//	DirectMessage: Active, Recipients, LastMessageID
//	Group:         Name, Owner, Description, Recipients, Icon, LastMessageID, Permissions, NSFW
//	Text/Voice:    Server, Name, Description, Icon, LastMessageID (text), DefaultPermissions, RolePermissions, NSFW
type Channel struct {
	ChannelType ChannelType `json:"channel_type" bson:"channel_type"`
	ID          string      `json:"_id" bson:"_id"`

	User       string   `json:"user,omitempty" bson:"user,omitempty"`
	Active     *bool    `json:"active,omitempty" bson:"active,omitempty"`
	Recipients []string `json:"recipients,omitempty" bson:"recipients,omitempty"`
	Server     string   `json:"server,omitempty" bson:"server,omitempty"`

	Name          string `json:"name,omitempty" bson:"name,omitempty"`
	Owner         string `json:"owner,omitempty" bson:"owner,omitempty"`
	Description   string `json:"description,omitempty" bson:"description,omitempty"`
	Icon          *File  `json:"icon,omitempty" bson:"icon,omitempty"`
	LastMessageID string `json:"last_message_id,omitempty" bson:"last_message_id,omitempty"`
	NSFW          bool   `json:"nsfw,omitempty" bson:"nsfw,omitempty"`

	// Permissions is the legacy group permission bitfield
	Permissions        *int64                   `json:"permissions,omitempty" bson:"permissions,omitempty"`
	DefaultPermissions *OverrideField           `json:"default_permissions,omitempty" bson:"default_permissions,omitempty"`
	RolePermissions    map[string]OverrideField `json:"role_permissions,omitempty" bson:"role_permissions,omitempty"`
}

// IsServerChannel reports whether the channel belongs to a server
func (c *Channel) IsServerChannel() bool {
	return c.ChannelType == ChannelTypeText || c.ChannelType == ChannelTypeVoice
}

// HasRecipients reports whether the channel is a direct message or group
func (c *Channel) HasRecipients() bool {
	return c.ChannelType == ChannelTypeDirectMessage || c.ChannelType == ChannelTypeGroup
}

// IsActive reports whether a direct message is open
func (c *Channel) IsActive() bool {
	return c.Active != nil && *c.Active
}

// HasRecipient reports whether id is a recipient of a direct message or group
func (c *Channel) HasRecipient(id string) bool {
	if !c.HasRecipients() {
		return false
	}
	for _, r := range c.Recipients {
		if r == id {
			return true
		}
	}
	return false
}

// SetRolePermission sets the override for a role on a server channel
func (c *Channel) SetRolePermission(roleID string, o OverrideField) error {
	if !c.IsServerChannel() {
		return ErrInvalidOperation
	}
	if c.RolePermissions == nil {
		c.RolePermissions = make(map[string]OverrideField)
	}
	c.RolePermissions[roleID] = o
	return nil
}

// SetDefaultPermissions sets the default override of a server channel
func (c *Channel) SetDefaultPermissions(o OverrideField) error {
	if !c.IsServerChannel() {
		return ErrInvalidOperation
	}
	c.DefaultPermissions = &o
	return nil
}

// FieldsChannel names optional channel fields that can be cleared
type FieldsChannel string

const (
	FieldsChannelDescription        FieldsChannel = "Description"
	FieldsChannelIcon               FieldsChannel = "Icon"
	FieldsChannelDefaultPermissions FieldsChannel = "DefaultPermissions"
)

// PartialChannel carries the fields of a channel update
type PartialChannel struct {
	Name               *string                  `json:"name,omitempty"`
	Owner              *string                  `json:"owner,omitempty"`
	Description        *string                  `json:"description,omitempty"`
	Icon               *File                    `json:"icon,omitempty"`
	NSFW               *bool                    `json:"nsfw,omitempty"`
	Active             *bool                    `json:"active,omitempty"`
	Permissions        *int64                   `json:"permissions,omitempty"`
	RolePermissions    map[string]OverrideField `json:"role_permissions,omitempty"`
	DefaultPermissions *OverrideField           `json:"default_permissions,omitempty"`
	LastMessageID      *string                  `json:"last_message_id,omitempty"`
}

// Apply merges the fields of p that are meaningful for the channel's variant
func (c *Channel) Apply(p PartialChannel) {
	switch c.ChannelType {
	case ChannelTypeDirectMessage:
		if p.Active != nil {
			active := *p.Active
			c.Active = &active
		}
		if p.LastMessageID != nil {
			c.LastMessageID = *p.LastMessageID
		}
	case ChannelTypeGroup:
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.Owner != nil {
			c.Owner = *p.Owner
		}
		if p.Description != nil {
			c.Description = *p.Description
		}
		if p.Icon != nil {
			c.Icon = p.Icon
		}
		if p.NSFW != nil {
			c.NSFW = *p.NSFW
		}
		if p.Permissions != nil {
			perms := *p.Permissions
			c.Permissions = &perms
		}
		if p.LastMessageID != nil {
			c.LastMessageID = *p.LastMessageID
		}
	case ChannelTypeText, ChannelTypeVoice:
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.Description != nil {
			c.Description = *p.Description
		}
		if p.Icon != nil {
			c.Icon = p.Icon
		}
		if p.NSFW != nil {
			c.NSFW = *p.NSFW
		}
		if p.RolePermissions != nil {
			c.RolePermissions = p.RolePermissions
		}
		if p.DefaultPermissions != nil {
			def := *p.DefaultPermissions
			c.DefaultPermissions = &def
		}
		if p.LastMessageID != nil && c.ChannelType == ChannelTypeText {
			c.LastMessageID = *p.LastMessageID
		}
	}
}

// Remove clears a single optional field where the variant has it
func (c *Channel) Remove(field FieldsChannel) {
	switch field {
	case FieldsChannelDescription:
		if c.ChannelType == ChannelTypeGroup || c.IsServerChannel() {
			c.Description = ""
		}
	case FieldsChannelIcon:
		if c.ChannelType == ChannelTypeGroup || c.IsServerChannel() {
			c.Icon = nil
		}
	case FieldsChannelDefaultPermissions:
		if c.IsServerChannel() {
			c.DefaultPermissions = nil
		}
	}
}
