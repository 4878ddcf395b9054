package permissions

import (
	"context"

	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/models"
)

// CalculateUserPermissions computes what the actor may do to the target user
func CalculateUserPermissions(ctx context.Context, q Query) Value {
	metrics.PermissionCalculations.WithLabelValues("user").Inc()

	if q.AreWePrivileged(ctx) || q.AreTheUsersSame(ctx) {
		return Value(GrantAll)
	}

	var permissions Value
	switch q.UserRelationship(ctx) {
	case models.RelationshipFriend:
		return Value(GrantAll)
	case models.RelationshipBlocked, models.RelationshipBlockedOther:
		return Value(UserAccess)
	case models.RelationshipIncoming, models.RelationshipOutgoing:
		permissions = Value(UserAccess)
	}

	if q.HaveMutualConnection(ctx) {
		permissions = Value(UserAccess | UserViewProfile)

		if q.UserIsBot(ctx) || q.AreWeABot(ctx) {
			permissions.Allow(uint64(UserSendMessage))
		}

		return permissions
	}

	return permissions
}

// CalculateServerPermissions computes the actor's permissions in the target server
func CalculateServerPermissions(ctx context.Context, q Query) Value {
	metrics.PermissionCalculations.WithLabelValues("server").Inc()

	if q.AreWePrivileged(ctx) || q.AreWeServerOwner(ctx) {
		return Value(GrantAllSafe)
	}

	if !q.AreWeAMember(ctx) {
		return 0
	}

	permissions := Value(q.GetDefaultServerPermissions(ctx))

	for _, o := range q.GetOurServerRoleOverrides(ctx) {
		permissions.Apply(o)
	}

	if q.AreWeTimedOut(ctx) {
		permissions.Restrict(uint64(AllowInTimeout))
	}

	return permissions
}

// CalculateChannelPermissions computes the actor's permissions in the target channel
func CalculateChannelPermissions(ctx context.Context, q Query) Value {
	metrics.PermissionCalculations.WithLabelValues("channel").Inc()

	if q.AreWePrivileged(ctx) {
		return Value(GrantAllSafe)
	}

	switch q.GetChannelType(ctx) {
	case ChannelKindSavedMessages:
		if q.DoWeOwnTheChannel(ctx) {
			return DefaultSavedMessages
		}
		return 0

	case ChannelKindDirectMessage:
		if !q.AreWePartOfTheChannel(ctx) {
			return 0
		}

		q.SetRecipientAsUser(ctx)
		if CalculateUserPermissions(ctx, q).HasUserPermission(UserSendMessage) {
			return DefaultDirectMessage
		}
		return DefaultViewOnly

	case ChannelKindGroup:
		if q.DoWeOwnTheChannel(ctx) {
			return Value(GrantAllSafe)
		}
		if q.AreWePartOfTheChannel(ctx) {
			return DefaultViewOnly | Value(q.GetDefaultChannelPermissions(ctx).Allow)
		}
		return 0

	case ChannelKindServerChannel:
		q.SetServerFromChannel(ctx)

		if q.AreWeServerOwner(ctx) {
			return Value(GrantAllSafe)
		}
		if !q.AreWeAMember(ctx) {
			return 0
		}

		permissions := CalculateServerPermissions(ctx, q)
		permissions.Apply(q.GetDefaultChannelPermissions(ctx))

		for _, o := range q.GetOurChannelRoleOverrides(ctx) {
			permissions.Apply(o)
		}

		if q.AreWeTimedOut(ctx) {
			permissions.Restrict(uint64(AllowInTimeout))
		}

		if !permissions.HasChannelPermission(ViewChannel) {
			permissions.RevokeAll()
		}

		return permissions
	}

	return 0
}

// CheckElevation fails with NotElevated unless the actor outranks the target.
// Lower rank numbers carry more authority.
func CheckElevation(actorRank, targetRank int64) error {
	if targetRank <= actorRank {
		return ErrNotElevated
	}
	return nil
}
