// Package presence tracks which users have at least one open socket session.
//
// Sessions are grouped by region so that a crashed node's sessions can be
// cleared in one step: every node heartbeats its region and a leader-elected
// janitor sweeps regions whose heartbeat expired.
package presence

import (
	"context"
	"strconv"
	"time"
)

// Session is one open connection of a user
type Session struct {
	ID     string
	Region string
	Flags  uint8
}

// member is the entry stored in the user's session set
func (s Session) member() string {
	return s.Region + ":" + s.ID + ":" + strconv.Itoa(int(s.Flags))
}

// regionMember is the entry stored in the region's session set
func (s Session) regionMember(userID string) string {
	return userID + ":" + s.ID + ":" + strconv.Itoa(int(s.Flags))
}

// Store records presence sessions
type Store interface {
	// CreateSession registers a new session in the store's region and
	// reports whether it is the user's first
	CreateSession(ctx context.Context, userID string, flags uint8) (Session, bool, error)

	// DeleteSession removes a session and reports whether it was the last
	DeleteSession(ctx context.Context, userID string, session Session) (bool, error)

	// FilterOnline returns the subset of ids that are online, in input order
	FilterOnline(ctx context.Context, ids []string) ([]string, error)

	// IsOnline reports whether a user has any session
	IsOnline(ctx context.Context, userID string) (bool, error)

	// ClearRegion removes every session registered in a region
	ClearRegion(ctx context.Context, region string) error

	// Heartbeat marks a region alive for ttl
	Heartbeat(ctx context.Context, region string, ttl time.Duration) error

	// Sweep clears known regions whose heartbeat expired and returns them
	Sweep(ctx context.Context) ([]string, error)
}
