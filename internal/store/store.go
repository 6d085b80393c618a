// Package store defines the bundle of repositories a storage driver provides.
package store

import "chatrelay/internal/domain"

// Stores groups the four persistence interfaces behind one driver so wiring
// code can swap sqlite, postgres, or memory without touching services.
type Stores struct {
	Users    domain.UserRepository
	Rooms    domain.RoomRepository
	Messages domain.MessageRepository
	Friends  domain.FriendRepository
}
