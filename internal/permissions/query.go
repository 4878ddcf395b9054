package permissions

import (
	"context"

	"go.ember.chat/internal/models"
)

// ChannelKind is the structural type of a channel as far as permissions care
type ChannelKind int

const (
	ChannelKindUnknown ChannelKind = iota
	ChannelKindSavedMessages
	ChannelKindDirectMessage
	ChannelKindGroup
	ChannelKindServerChannel
)

// Query exposes the facts the calculator needs about an actor and a target.
// Implementations may fetch lazily and memoise; lookups that fail resolve to
// the most restrictive answer.
type Query interface {
	// Actor facts
	AreWePrivileged(ctx context.Context) bool
	AreWeABot(ctx context.Context) bool

	// User target facts
	AreTheUsersSame(ctx context.Context) bool
	UserRelationship(ctx context.Context) models.RelationshipStatus
	UserIsBot(ctx context.Context) bool
	HaveMutualConnection(ctx context.Context) bool

	// Server target facts
	AreWeServerOwner(ctx context.Context) bool
	AreWeAMember(ctx context.Context) bool
	GetDefaultServerPermissions(ctx context.Context) uint64
	// GetOurServerRoleOverrides returns overrides sorted by rank descending
	GetOurServerRoleOverrides(ctx context.Context) []Override
	AreWeTimedOut(ctx context.Context) bool

	// Channel target facts
	GetChannelType(ctx context.Context) ChannelKind
	GetDefaultChannelPermissions(ctx context.Context) Override
	// GetOurChannelRoleOverrides returns overrides sorted by rank descending
	GetOurChannelRoleOverrides(ctx context.Context) []Override
	DoWeOwnTheChannel(ctx context.Context) bool
	AreWePartOfTheChannel(ctx context.Context) bool

	// SetRecipientAsUser makes the other participant of a direct message the user target
	SetRecipientAsUser(ctx context.Context)
	// SetServerFromChannel makes the parent server of a server channel the server target
	SetServerFromChannel(ctx context.Context)
}
