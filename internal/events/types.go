package events

import "go.ember.chat/internal/models"

// Session control

type Authenticated struct{}

func (Authenticated) EventType() string { return "Authenticated" }

// Ready is the initial snapshot sent after authentication
type Ready struct {
	Users    []models.User    `json:"users"`
	Servers  []models.Server  `json:"servers"`
	Channels []models.Channel `json:"channels"`
	Members  []models.Member  `json:"members"`
	Emojis   []models.Emoji   `json:"emojis,omitempty"`
}

func (Ready) EventType() string { return "Ready" }

type Pong struct {
	Data Ping `json:"data"`
}

func (Pong) EventType() string { return "Pong" }

// Messages

// Message carries a message document through unchanged
type Message struct {
	models.Opaque
}

func (Message) EventType() string { return "Message" }

type MessageUpdate struct {
	ID      string        `json:"id"`
	Channel string        `json:"channel"`
	Data    models.Opaque `json:"data"`
}

func (MessageUpdate) EventType() string { return "MessageUpdate" }

type MessageAppend struct {
	ID      string        `json:"id"`
	Channel string        `json:"channel"`
	Append  models.Opaque `json:"append"`
}

func (MessageAppend) EventType() string { return "MessageAppend" }

type MessageDelete struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

func (MessageDelete) EventType() string { return "MessageDelete" }

type MessageReact struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	EmojiID   string `json:"emoji_id"`
}

func (MessageReact) EventType() string { return "MessageReact" }

type MessageUnreact struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	EmojiID   string `json:"emoji_id"`
}

func (MessageUnreact) EventType() string { return "MessageUnreact" }

type MessageRemoveReaction struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	EmojiID   string `json:"emoji_id"`
}

func (MessageRemoveReaction) EventType() string { return "MessageRemoveReaction" }

type BulkMessageDelete struct {
	Channel string   `json:"channel"`
	IDs     []string `json:"ids"`
}

func (BulkMessageDelete) EventType() string { return "BulkMessageDelete" }

// Channels

// ChannelCreate carries the full channel body
type ChannelCreate struct {
	models.Channel
}

func (ChannelCreate) EventType() string { return "ChannelCreate" }

type ChannelUpdate struct {
	ID    string                 `json:"id"`
	Data  models.PartialChannel  `json:"data"`
	Clear []models.FieldsChannel `json:"clear"`
}

func (ChannelUpdate) EventType() string { return "ChannelUpdate" }

type ChannelDelete struct {
	ID string `json:"id"`
}

func (ChannelDelete) EventType() string { return "ChannelDelete" }

type ChannelGroupJoin struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ChannelGroupJoin) EventType() string { return "ChannelGroupJoin" }

type ChannelGroupLeave struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ChannelGroupLeave) EventType() string { return "ChannelGroupLeave" }

type ChannelStartTyping struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ChannelStartTyping) EventType() string { return "ChannelStartTyping" }

type ChannelStopTyping struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ChannelStopTyping) EventType() string { return "ChannelStopTyping" }

type ChannelAck struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	MessageID string `json:"message_id"`
}

func (ChannelAck) EventType() string { return "ChannelAck" }

// Servers

type ServerCreate struct {
	ID       string           `json:"id"`
	Server   models.Server    `json:"server"`
	Channels []models.Channel `json:"channels"`
}

func (ServerCreate) EventType() string { return "ServerCreate" }

type ServerUpdate struct {
	ID    string                `json:"id"`
	Data  models.PartialServer  `json:"data"`
	Clear []models.FieldsServer `json:"clear"`
}

func (ServerUpdate) EventType() string { return "ServerUpdate" }

type ServerDelete struct {
	ID string `json:"id"`
}

func (ServerDelete) EventType() string { return "ServerDelete" }

type ServerMemberUpdate struct {
	ID    models.MemberCompositeKey `json:"id"`
	Data  models.PartialMember      `json:"data"`
	Clear []models.FieldsMember     `json:"clear"`
}

func (ServerMemberUpdate) EventType() string { return "ServerMemberUpdate" }

type ServerMemberJoin struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ServerMemberJoin) EventType() string { return "ServerMemberJoin" }

type ServerMemberLeave struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (ServerMemberLeave) EventType() string { return "ServerMemberLeave" }

type ServerRoleUpdate struct {
	ID     string              `json:"id"`
	RoleID string              `json:"role_id"`
	Data   models.PartialRole  `json:"data"`
	Clear  []models.FieldsRole `json:"clear"`
}

func (ServerRoleUpdate) EventType() string { return "ServerRoleUpdate" }

type ServerRoleDelete struct {
	ID     string `json:"id"`
	RoleID string `json:"role_id"`
}

func (ServerRoleDelete) EventType() string { return "ServerRoleDelete" }

// Users

type UserUpdate struct {
	ID    string              `json:"id"`
	Data  models.PartialUser  `json:"data"`
	Clear []models.FieldsUser `json:"clear"`
}

func (UserUpdate) EventType() string { return "UserUpdate" }

type UserRelationship struct {
	ID     string                    `json:"id"`
	User   models.User               `json:"user"`
	Status models.RelationshipStatus `json:"status,omitempty"`
}

func (UserRelationship) EventType() string { return "UserRelationship" }

type UserSettingsUpdate struct {
	ID     string        `json:"id"`
	Update models.Opaque `json:"update"`
}

func (UserSettingsUpdate) EventType() string { return "UserSettingsUpdate" }

type UserPlatformWipe struct {
	UserID string `json:"user_id"`
	Flags  int32  `json:"flags"`
}

func (UserPlatformWipe) EventType() string { return "UserPlatformWipe" }

// Customisation, safety and integrations

type EmojiCreate struct {
	models.Emoji
}

func (EmojiCreate) EventType() string { return "EmojiCreate" }

type EmojiDelete struct {
	ID string `json:"id"`
}

func (EmojiDelete) EventType() string { return "EmojiDelete" }

type ReportCreate struct {
	models.Opaque
}

func (ReportCreate) EventType() string { return "ReportCreate" }

type WebhookCreate struct {
	models.Opaque
}

func (WebhookCreate) EventType() string { return "WebhookCreate" }

type WebhookUpdate struct {
	ID     string        `json:"id"`
	Data   models.Opaque `json:"data"`
	Remove []string      `json:"remove"`
}

func (WebhookUpdate) EventType() string { return "WebhookUpdate" }

type WebhookDelete struct {
	ID string `json:"id"`
}

func (WebhookDelete) EventType() string { return "WebhookDelete" }

// Auth forwards authentication service events unchanged
type Auth struct {
	models.Opaque
}

func (Auth) EventType() string { return "Auth" }
