package permissions

import (
	"context"

	"go.ember.chat/internal/models"
)

// SeededQuery answers every fact from pre-populated fields. It performs no
// I/O and is used to exercise the calculator deterministically.
type SeededQuery struct {
	Privileged bool
	Bot        bool

	SameUser         bool
	Relationship     models.RelationshipStatus
	TargetIsBot      bool
	MutualConnection bool

	ServerOwner              bool
	Member                   bool
	DefaultServerPermissions uint64
	ServerRoleOverrides      []Override
	TimedOut                 bool

	ChannelKind               ChannelKind
	DefaultChannelPermissions Override
	ChannelRoleOverrides      []Override
	ChannelOwner              bool
	ChannelParticipant        bool

	// Recipient, when set, replaces the user facts on SetRecipientAsUser
	Recipient *SeededQuery
}

var _ Query = (*SeededQuery)(nil)

func (q *SeededQuery) AreWePrivileged(context.Context) bool { return q.Privileged }
func (q *SeededQuery) AreWeABot(context.Context) bool       { return q.Bot }
func (q *SeededQuery) AreTheUsersSame(context.Context) bool { return q.SameUser }

func (q *SeededQuery) UserRelationship(context.Context) models.RelationshipStatus {
	if q.Relationship == "" {
		return models.RelationshipNone
	}
	return q.Relationship
}

func (q *SeededQuery) UserIsBot(context.Context) bool            { return q.TargetIsBot }
func (q *SeededQuery) HaveMutualConnection(context.Context) bool { return q.MutualConnection }
func (q *SeededQuery) AreWeServerOwner(context.Context) bool     { return q.ServerOwner }
func (q *SeededQuery) AreWeAMember(context.Context) bool         { return q.Member }

func (q *SeededQuery) GetDefaultServerPermissions(context.Context) uint64 {
	return q.DefaultServerPermissions
}

func (q *SeededQuery) GetOurServerRoleOverrides(context.Context) []Override {
	return q.ServerRoleOverrides
}

func (q *SeededQuery) AreWeTimedOut(context.Context) bool         { return q.TimedOut }
func (q *SeededQuery) GetChannelType(context.Context) ChannelKind { return q.ChannelKind }

func (q *SeededQuery) GetDefaultChannelPermissions(context.Context) Override {
	return q.DefaultChannelPermissions
}

func (q *SeededQuery) GetOurChannelRoleOverrides(context.Context) []Override {
	return q.ChannelRoleOverrides
}

func (q *SeededQuery) DoWeOwnTheChannel(context.Context) bool     { return q.ChannelOwner }
func (q *SeededQuery) AreWePartOfTheChannel(context.Context) bool { return q.ChannelParticipant }

func (q *SeededQuery) SetRecipientAsUser(context.Context) {
	if r := q.Recipient; r != nil {
		q.SameUser = r.SameUser
		q.Relationship = r.Relationship
		q.TargetIsBot = r.TargetIsBot
		q.MutualConnection = r.MutualConnection
	}
}

func (q *SeededQuery) SetServerFromChannel(context.Context) {}
