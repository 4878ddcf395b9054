package permissions

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.ember.chat/internal/models"
)

// Store is the subset of storage the database-backed query reads from
type Store interface {
	FetchUser(ctx context.Context, id string) (*models.User, error)
	FetchServer(ctx context.Context, id string) (*models.Server, error)
	FetchMember(ctx context.Context, serverID, userID string) (*models.Member, error)
	FetchMutualServerIDs(ctx context.Context, userA, userB string) ([]string, error)
	FetchMutualChannelIDs(ctx context.Context, userA, userB string) ([]string, error)
}

// DatabaseQuery resolves facts from storage, starting from whatever entities
// the caller already holds and fetching the rest on first use.
type DatabaseQuery struct {
	store       Store
	perspective *models.User
	now         func() time.Time

	user    *models.User
	channel *models.Channel
	server  *models.Server
	member  *models.Member

	memberFetched bool
	mutual        *bool
}

var _ Query = (*DatabaseQuery)(nil)

// NewDatabaseQuery creates a query from the point of view of perspective
func NewDatabaseQuery(store Store, perspective *models.User) *DatabaseQuery {
	return &DatabaseQuery{
		store:       store,
		perspective: perspective,
		now:         time.Now,
	}
}

// User sets the user target
func (q *DatabaseQuery) User(u *models.User) *DatabaseQuery {
	q.user = u
	q.mutual = nil
	return q
}

// Channel sets the channel target
func (q *DatabaseQuery) Channel(c *models.Channel) *DatabaseQuery {
	q.channel = c
	return q
}

// Server sets the server target
func (q *DatabaseQuery) Server(s *models.Server) *DatabaseQuery {
	q.server = s
	return q
}

// Member sets the actor's membership of the server target
func (q *DatabaseQuery) Member(m *models.Member) *DatabaseQuery {
	q.member = m
	q.memberFetched = true
	return q
}

// WithClock overrides the time source used for timeout checks
func (q *DatabaseQuery) WithClock(now func() time.Time) *DatabaseQuery {
	q.now = now
	return q
}

func (q *DatabaseQuery) AreWePrivileged(context.Context) bool {
	return q.perspective.Privileged
}

func (q *DatabaseQuery) AreWeABot(context.Context) bool {
	return q.perspective.IsBot()
}

func (q *DatabaseQuery) AreTheUsersSame(context.Context) bool {
	return q.user != nil && q.user.ID == q.perspective.ID
}

func (q *DatabaseQuery) UserRelationship(context.Context) models.RelationshipStatus {
	if q.user == nil {
		return models.RelationshipNone
	}
	return q.perspective.RelationshipWith(q.user.ID)
}

func (q *DatabaseQuery) UserIsBot(context.Context) bool {
	return q.user != nil && q.user.IsBot()
}

func (q *DatabaseQuery) HaveMutualConnection(ctx context.Context) bool {
	if q.mutual != nil {
		return *q.mutual
	}
	if q.user == nil {
		return false
	}

	mutual := false
	if ids, err := q.store.FetchMutualServerIDs(ctx, q.perspective.ID, q.user.ID); err == nil && len(ids) > 0 {
		mutual = true
	} else if ids, err := q.store.FetchMutualChannelIDs(ctx, q.perspective.ID, q.user.ID); err == nil && len(ids) > 0 {
		mutual = true
	}

	q.mutual = &mutual
	return mutual
}

func (q *DatabaseQuery) AreWeServerOwner(context.Context) bool {
	return q.server != nil && q.server.Owner == q.perspective.ID
}

func (q *DatabaseQuery) AreWeAMember(ctx context.Context) bool {
	if q.server == nil {
		return false
	}
	if q.member != nil && q.member.ID.Server != q.server.ID {
		q.member = nil
		q.memberFetched = false
	}
	if !q.memberFetched {
		q.memberFetched = true
		member, err := q.store.FetchMember(ctx, q.server.ID, q.perspective.ID)
		if err == nil {
			q.member = member
		}
	}
	return q.member != nil
}

func (q *DatabaseQuery) GetDefaultServerPermissions(context.Context) uint64 {
	if q.server == nil {
		return 0
	}
	return uint64(q.server.DefaultPermissions)
}

func (q *DatabaseQuery) GetOurServerRoleOverrides(context.Context) []Override {
	if q.server == nil || q.member == nil {
		return nil
	}

	var ranked []rankedOverride
	for _, id := range q.member.Roles {
		if role, ok := q.server.Roles[id]; ok {
			ranked = append(ranked, rankedOverride{rank: role.Rank, override: OverrideFromField(role.Permissions)})
		}
	}
	return sortByRankDescending(ranked)
}

func (q *DatabaseQuery) AreWeTimedOut(context.Context) bool {
	return q.member != nil && q.member.InTimeout(q.now())
}

func (q *DatabaseQuery) GetChannelType(context.Context) ChannelKind {
	if q.channel == nil {
		return ChannelKindUnknown
	}
	switch q.channel.ChannelType {
	case models.ChannelTypeSavedMessages:
		return ChannelKindSavedMessages
	case models.ChannelTypeDirectMessage:
		return ChannelKindDirectMessage
	case models.ChannelTypeGroup:
		return ChannelKindGroup
	case models.ChannelTypeText, models.ChannelTypeVoice:
		return ChannelKindServerChannel
	}
	return ChannelKindUnknown
}

func (q *DatabaseQuery) GetDefaultChannelPermissions(context.Context) Override {
	if q.channel == nil {
		return Override{}
	}
	switch q.channel.ChannelType {
	case models.ChannelTypeGroup:
		if q.channel.Permissions != nil {
			return Override{Allow: uint64(*q.channel.Permissions)}
		}
		return Override{Allow: uint64(DefaultDirectMessage)}
	case models.ChannelTypeText, models.ChannelTypeVoice:
		if q.channel.DefaultPermissions != nil {
			return OverrideFromField(*q.channel.DefaultPermissions)
		}
	}
	return Override{}
}

func (q *DatabaseQuery) GetOurChannelRoleOverrides(context.Context) []Override {
	if q.channel == nil || !q.channel.IsServerChannel() || q.member == nil {
		return nil
	}

	var ranked []rankedOverride
	for id, field := range q.channel.RolePermissions {
		if !q.member.HasRole(id) {
			continue
		}
		rank := int64(math.MaxInt64)
		if q.server != nil {
			if role, ok := q.server.Roles[id]; ok {
				rank = role.Rank
			}
		}
		ranked = append(ranked, rankedOverride{rank: rank, override: OverrideFromField(field)})
	}
	return sortByRankDescending(ranked)
}

func (q *DatabaseQuery) DoWeOwnTheChannel(context.Context) bool {
	if q.channel == nil {
		return false
	}
	switch q.channel.ChannelType {
	case models.ChannelTypeGroup:
		return q.channel.Owner == q.perspective.ID
	case models.ChannelTypeSavedMessages:
		return q.channel.User == q.perspective.ID
	}
	return false
}

func (q *DatabaseQuery) AreWePartOfTheChannel(context.Context) bool {
	return q.channel != nil && q.channel.HasRecipient(q.perspective.ID)
}

func (q *DatabaseQuery) SetRecipientAsUser(ctx context.Context) {
	if q.channel == nil || q.channel.ChannelType != models.ChannelTypeDirectMessage {
		return
	}

	for _, id := range q.channel.Recipients {
		if id == q.perspective.ID {
			continue
		}
		if q.user != nil && q.user.ID == id {
			return
		}
		user, err := q.store.FetchUser(ctx, id)
		if err != nil {
			slog.Debug("Failed to resolve direct message recipient",
				"channelId", q.channel.ID, "userId", id, "error", err)
			return
		}
		q.User(user)
		return
	}
}

func (q *DatabaseQuery) SetServerFromChannel(ctx context.Context) {
	if q.channel == nil || !q.channel.IsServerChannel() {
		return
	}
	if q.server != nil && q.server.ID == q.channel.Server {
		return
	}

	server, err := q.store.FetchServer(ctx, q.channel.Server)
	if err != nil {
		slog.Debug("Failed to resolve channel server",
			"channelId", q.channel.ID, "serverId", q.channel.Server, "error", err)
		return
	}
	q.server = server
}

type rankedOverride struct {
	rank     int64
	override Override
}

func sortByRankDescending(ranked []rankedOverride) []Override {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].rank > ranked[j].rank
	})

	overrides := make([]Override, len(ranked))
	for i, r := range ranked {
		overrides[i] = r.override
	}
	return overrides
}
