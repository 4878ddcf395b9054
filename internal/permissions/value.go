package permissions

import (
	"math"
	"strings"

	"go.ember.chat/internal/models"
)

// ChannelPermission is a single capability bit within a channel or server
type ChannelPermission uint64

const (
	ManageChannel       ChannelPermission = 1 << 0
	ManageServer        ChannelPermission = 1 << 1
	ManagePermissions   ChannelPermission = 1 << 2
	ManageRole          ChannelPermission = 1 << 3
	ManageCustomisation ChannelPermission = 1 << 4

	KickMembers     ChannelPermission = 1 << 6
	BanMembers      ChannelPermission = 1 << 7
	TimeoutMembers  ChannelPermission = 1 << 8
	AssignRoles     ChannelPermission = 1 << 9
	ChangeNickname  ChannelPermission = 1 << 10
	ManageNicknames ChannelPermission = 1 << 11
	ChangeAvatar    ChannelPermission = 1 << 12
	RemoveAvatars   ChannelPermission = 1 << 13

	ViewChannel        ChannelPermission = 1 << 20
	ReadMessageHistory ChannelPermission = 1 << 21
	SendMessage        ChannelPermission = 1 << 22
	ManageMessages     ChannelPermission = 1 << 23
	ManageWebhooks     ChannelPermission = 1 << 24
	InviteOthers       ChannelPermission = 1 << 25
	SendEmbeds         ChannelPermission = 1 << 26
	UploadFiles        ChannelPermission = 1 << 27
	Masquerade         ChannelPermission = 1 << 28
	React              ChannelPermission = 1 << 29

	Connect       ChannelPermission = 1 << 30
	Speak         ChannelPermission = 1 << 31
	Video         ChannelPermission = 1 << 32
	MuteMembers   ChannelPermission = 1 << 33
	DeafenMembers ChannelPermission = 1 << 34
	MoveMembers   ChannelPermission = 1 << 35

	// GrantAllSafe is every bit except the reserved top range
	GrantAllSafe ChannelPermission = 0x000F_FFFF_FFFF_FFFF

	// GrantAll is every bit
	GrantAll ChannelPermission = math.MaxUint64
)

var channelPermissionNames = []struct {
	bit  ChannelPermission
	name string
}{
	{ManageChannel, "ManageChannel"},
	{ManageServer, "ManageServer"},
	{ManagePermissions, "ManagePermissions"},
	{ManageRole, "ManageRole"},
	{ManageCustomisation, "ManageCustomisation"},
	{KickMembers, "KickMembers"},
	{BanMembers, "BanMembers"},
	{TimeoutMembers, "TimeoutMembers"},
	{AssignRoles, "AssignRoles"},
	{ChangeNickname, "ChangeNickname"},
	{ManageNicknames, "ManageNicknames"},
	{ChangeAvatar, "ChangeAvatar"},
	{RemoveAvatars, "RemoveAvatars"},
	{ViewChannel, "ViewChannel"},
	{ReadMessageHistory, "ReadMessageHistory"},
	{SendMessage, "SendMessage"},
	{ManageMessages, "ManageMessages"},
	{ManageWebhooks, "ManageWebhooks"},
	{InviteOthers, "InviteOthers"},
	{SendEmbeds, "SendEmbeds"},
	{UploadFiles, "UploadFiles"},
	{Masquerade, "Masquerade"},
	{React, "React"},
	{Connect, "Connect"},
	{Speak, "Speak"},
	{Video, "Video"},
	{MuteMembers, "MuteMembers"},
	{DeafenMembers, "DeafenMembers"},
	{MoveMembers, "MoveMembers"},
}

func (p ChannelPermission) String() string {
	switch p {
	case GrantAll:
		return "GrantAll"
	case GrantAllSafe:
		return "GrantAllSafe"
	}
	var parts []string
	for _, n := range channelPermissionNames {
		if p&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// UserPermission is a single capability bit one user holds over another
type UserPermission uint64

const (
	UserAccess      UserPermission = 1 << 0
	UserViewProfile UserPermission = 1 << 1
	UserSendMessage UserPermission = 1 << 2
	UserInvite      UserPermission = 1 << 3
)

func (p UserPermission) String() string {
	switch p {
	case UserAccess:
		return "Access"
	case UserViewProfile:
		return "ViewProfile"
	case UserSendMessage:
		return "SendMessage"
	case UserInvite:
		return "Invite"
	}
	return "Unknown"
}

// Named permission sets
const (
	AllowInTimeout = Value(ViewChannel | ReadMessageHistory)

	DefaultViewOnly = Value(ViewChannel | ReadMessageHistory)

	Default = DefaultViewOnly |
		Value(SendMessage|InviteOthers|SendEmbeds|UploadFiles|Connect|Speak)

	DefaultDirectMessage = Default | Value(ManageChannel|React)

	DefaultServer = Default | Value(React|ChangeNickname|ChangeAvatar)

	DefaultWebhook = Value(SendMessage | SendEmbeds | Masquerade | React)

	DefaultSavedMessages = Value(GrantAllSafe)
)

// Override grants and then revokes a set of bits
type Override struct {
	Allow uint64
	Deny  uint64
}

// OverrideFromField converts the stored override representation
func OverrideFromField(f models.OverrideField) Override {
	return Override{Allow: uint64(f.Allow), Deny: uint64(f.Deny)}
}

// Field converts o to its stored representation
func (o Override) Field() models.OverrideField {
	return models.OverrideField{Allow: int64(o.Allow), Deny: int64(o.Deny)}
}

// Value is a computed permission bitfield
type Value uint64

// Allow sets bits
func (v *Value) Allow(bits uint64) {
	*v |= Value(bits)
}

// Revoke clears bits
func (v *Value) Revoke(bits uint64) {
	*v &^= Value(bits)
}

// Apply allows o.Allow then revokes o.Deny
func (v *Value) Apply(o Override) {
	v.Allow(o.Allow)
	v.Revoke(o.Deny)
}

// Restrict intersects with mask
func (v *Value) Restrict(mask uint64) {
	*v &= Value(mask)
}

// RevokeAll clears every bit
func (v *Value) RevokeAll() {
	*v = 0
}

// Has reports whether every bit in bits is set
func (v Value) Has(bits uint64) bool {
	return uint64(v)&bits == bits
}

// HasChannelPermission reports whether p is granted
func (v Value) HasChannelPermission(p ChannelPermission) bool {
	return v.Has(uint64(p))
}

// HasUserPermission reports whether p is granted
func (v Value) HasUserPermission(p UserPermission) bool {
	return v.Has(uint64(p))
}

// ThrowIfLackingChannelPermission returns an error unless p is granted.
// Lacking ViewChannel is reported as NotFound.
func (v Value) ThrowIfLackingChannelPermission(p ChannelPermission) error {
	if v.HasChannelPermission(p) {
		return nil
	}
	return FromChannelPermission(p)
}

// ThrowIfLackingUserPermission returns an error unless p is granted.
// Lacking UserAccess is reported as NotFound.
func (v Value) ThrowIfLackingUserPermission(p UserPermission) error {
	if v.HasUserPermission(p) {
		return nil
	}
	return FromUserPermission(p)
}

// Channel returns the value as channel permission bits
func (v Value) Channel() ChannelPermission {
	return ChannelPermission(v)
}
