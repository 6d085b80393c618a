// Package memory implements the repository bundle on process-local maps.
// It backs the `memory` storage driver and the service-level tests. All
// access goes through one mutex so every read-modify-write is a single
// critical section.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
	"chatrelay/internal/store"
)

type db struct {
	mu          sync.RWMutex
	users       map[string]*domain.User
	rooms       map[string]*domain.Room
	messages    map[string]*domain.Message
	msgOrder    map[string][]string // room id -> message ids, append order
	reads       map[string]map[string]struct{}
	requests    map[string]*domain.FriendRequest
	friendships map[string]*domain.Friendship // key "user1|user2", canonical order
}

// NewStores builds the repository bundle over a fresh in-memory database.
func NewStores() *store.Stores {
	d := &db{
		users:       make(map[string]*domain.User),
		rooms:       make(map[string]*domain.Room),
		messages:    make(map[string]*domain.Message),
		msgOrder:    make(map[string][]string),
		reads:       make(map[string]map[string]struct{}),
		requests:    make(map[string]*domain.FriendRequest),
		friendships: make(map[string]*domain.Friendship),
	}
	return &store.Stores{
		Users:    &userRepo{d},
		Rooms:    &roomRepo{d},
		Messages: &messageRepo{d},
		Friends:  &friendRepo{d},
	}
}

func pairKey(a, b string) string {
	u1, u2 := domain.OrderPair(a, b)
	return u1 + "|" + u2
}

// ── users ────────────────────────────────────────────────────────────────

type userRepo struct{ d *db }

var _ domain.UserRepository = (*userRepo)(nil)

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = domain.StatusOffline
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.LastSeen = now
	r.d.users[u.ID] = cloneUser(u)
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	return cloneUser(r.d.users[id]), nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	for _, u := range r.d.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	for _, u := range r.d.users {
		if u.Email != nil && *u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *userRepo) Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	q := strings.ToLower(query)
	var res []*domain.User
	for _, u := range r.d.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) ||
			(u.Email != nil && strings.Contains(strings.ToLower(*u.Email), q)) {
			res = append(res, cloneUser(u))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Username < res[j].Username })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *userRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	all := make([]*domain.User, 0, len(r.d.users))
	for _, u := range r.d.users {
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *userRepo) ListOnline(ctx context.Context) ([]*domain.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var res []*domain.User
	for _, u := range r.d.users {
		if u.Status == domain.StatusOnline {
			res = append(res, cloneUser(u))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LastSeen.After(res[j].LastSeen) })
	return res, nil
}

func (r *userRepo) UpdateStatus(ctx context.Context, id, status string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if u, ok := r.d.users[id]; ok {
		u.Status = status
		u.LastSeen = time.Now().UTC()
	}
	return nil
}

// ── rooms ────────────────────────────────────────────────────────────────

type roomRepo struct{ d *db }

var _ domain.RoomRepository = (*roomRepo)(nil)

func (r *roomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.CreatedAt = time.Now().UTC()
	r.d.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	return cloneRoom(r.d.rooms[id]), nil
}

func (r *roomRepo) FindPrivateRoom(ctx context.Context, userA, userB string) (*domain.Room, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	for _, room := range r.d.rooms {
		if room.Kind != domain.RoomPrivate || len(room.MemberIDs) != 2 {
			continue
		}
		if contains(room.MemberIDs, userA) && contains(room.MemberIDs, userB) {
			return cloneRoom(room), nil
		}
	}
	return nil, nil
}

func (r *roomRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Room, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var res []*domain.Room
	for _, room := range r.d.rooms {
		if contains(room.MemberIDs, userID) {
			res = append(res, cloneRoom(room))
		}
	}
	// Most recent last-message first, rooms without messages last.
	sort.SliceStable(res, func(i, j int) bool {
		li, lj := res[i].LastMessage, res[j].LastMessage
		switch {
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.CreatedAt.After(lj.CreatedAt)
		}
	})
	return res, nil
}

func (r *roomRepo) AddMember(ctx context.Context, roomID, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	room, ok := r.d.rooms[roomID]
	if !ok || contains(room.MemberIDs, userID) {
		return nil
	}
	room.MemberIDs = append(room.MemberIDs, userID)
	return nil
}

func (r *roomRepo) RemoveMember(ctx context.Context, roomID, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	room, ok := r.d.rooms[roomID]
	if !ok {
		return nil
	}
	for i, id := range room.MemberIDs {
		if id == userID {
			room.MemberIDs = append(room.MemberIDs[:i], room.MemberIDs[i+1:]...)
			break
		}
	}
	return nil
}

func (r *roomRepo) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	room, ok := r.d.rooms[roomID]
	return ok && contains(room.MemberIDs, userID), nil
}

func (r *roomRepo) UpdateLastMessage(ctx context.Context, roomID string, preview *domain.LastMessage) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if room, ok := r.d.rooms[roomID]; ok {
		p := *preview
		room.LastMessage = &p
	}
	return nil
}

// ── messages ─────────────────────────────────────────────────────────────

type messageRepo struct{ d *db }

var _ domain.MessageRepository = (*messageRepo)(nil)

func (r *messageRepo) Create(ctx context.Context, m *domain.Message) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	r.d.messages[m.ID] = cloneMessage(m)
	r.d.msgOrder[m.RoomID] = append(r.d.msgOrder[m.RoomID], m.ID)
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	m := r.d.messages[id]
	if m == nil {
		return nil, nil
	}
	return r.withReads(m), nil
}

func (r *messageRepo) ListForRoom(ctx context.Context, roomID string, limit, offset int) ([]*domain.Message, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	order := r.d.msgOrder[roomID]
	// Walk from the newest end: skip offset, take limit.
	var res []*domain.Message
	for i := len(order) - 1 - offset; i >= 0 && len(res) < limit; i-- {
		res = append(res, r.withReads(r.d.messages[order[i]]))
	}
	return res, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, messageID, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.markReadLocked(messageID, userID)
	return nil
}

func (r *messageRepo) MarkAllRead(ctx context.Context, roomID, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, id := range r.d.msgOrder[roomID] {
		r.markReadLocked(id, userID)
	}
	return nil
}

func (r *messageRepo) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	count := 0
	for _, id := range r.d.msgOrder[roomID] {
		m := r.d.messages[id]
		if m.SenderID == userID {
			continue
		}
		if _, ok := r.d.reads[id][userID]; !ok {
			count++
		}
	}
	return count, nil
}

func (r *messageRepo) markReadLocked(messageID, userID string) {
	if _, ok := r.d.messages[messageID]; !ok {
		return
	}
	if r.d.reads[messageID] == nil {
		r.d.reads[messageID] = make(map[string]struct{})
	}
	r.d.reads[messageID][userID] = struct{}{}
}

func (r *messageRepo) withReads(m *domain.Message) *domain.Message {
	c := cloneMessage(m)
	for uid := range r.d.reads[m.ID] {
		c.ReadBy = append(c.ReadBy, uid)
	}
	sort.Strings(c.ReadBy)
	return c
}

// ── friends ──────────────────────────────────────────────────────────────

type friendRepo struct{ d *db }

var _ domain.FriendRepository = (*friendRepo)(nil)

func (r *friendRepo) CreateRequest(ctx context.Context, fr *domain.FriendRequest) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if fr.ID == "" {
		fr.ID = uuid.NewString()
	}
	if fr.Status == "" {
		fr.Status = domain.RequestPending
	}
	now := time.Now().UTC()
	fr.CreatedAt = now
	fr.UpdatedAt = now
	c := *fr
	r.d.requests[fr.ID] = &c
	return nil
}

func (r *friendRepo) GetRequestByID(ctx context.Context, id string) (*domain.FriendRequest, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if fr, ok := r.d.requests[id]; ok {
		c := *fr
		return &c, nil
	}
	return nil, nil
}

func (r *friendRepo) FindPendingBetween(ctx context.Context, userA, userB string) (*domain.FriendRequest, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	for _, fr := range r.d.requests {
		if fr.Status != domain.RequestPending {
			continue
		}
		if (fr.FromUserID == userA && fr.ToUserID == userB) ||
			(fr.FromUserID == userB && fr.ToUserID == userA) {
			c := *fr
			return &c, nil
		}
	}
	return nil, nil
}

func (r *friendRepo) ListPendingTo(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listRequests(func(fr *domain.FriendRequest) bool {
		return fr.ToUserID == userID && fr.Status == domain.RequestPending
	})
}

func (r *friendRepo) ListSentBy(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listRequests(func(fr *domain.FriendRequest) bool {
		return fr.FromUserID == userID
	})
}

func (r *friendRepo) UpdateRequestStatus(ctx context.Context, id, status string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if fr, ok := r.d.requests[id]; ok {
		fr.Status = status
		fr.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *friendRepo) DeleteRequest(ctx context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	delete(r.d.requests, id)
	return nil
}

func (r *friendRepo) AcceptRequest(ctx context.Context, requestID string, f *domain.Friendship) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()
	if fr, ok := r.d.requests[requestID]; ok {
		fr.Status = domain.RequestAccepted
		fr.UpdatedAt = f.CreatedAt
	}
	c := *f
	r.d.friendships[pairKey(f.UserA, f.UserB)] = &c
	return nil
}

func (r *friendRepo) FindFriendship(ctx context.Context, userA, userB string) (*domain.Friendship, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	if f, ok := r.d.friendships[pairKey(userA, userB)]; ok {
		c := *f
		return &c, nil
	}
	return nil, nil
}

func (r *friendRepo) ListFriendships(ctx context.Context, userID string) ([]*domain.Friendship, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var res []*domain.Friendship
	for _, f := range r.d.friendships {
		if f.UserA == userID || f.UserB == userID {
			c := *f
			res = append(res, &c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *friendRepo) DeleteFriendship(ctx context.Context, userA, userB string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	delete(r.d.friendships, pairKey(userA, userB))
	return nil
}

func (r *friendRepo) listRequests(keep func(*domain.FriendRequest) bool) ([]*domain.FriendRequest, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var res []*domain.FriendRequest
	for _, fr := range r.d.requests {
		if keep(fr) {
			c := *fr
			res = append(res, &c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// ── clone helpers ────────────────────────────────────────────────────────

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Email != nil {
		e := *u.Email
		c.Email = &e
	}
	return &c
}

func cloneRoom(room *domain.Room) *domain.Room {
	if room == nil {
		return nil
	}
	c := *room
	c.MemberIDs = append([]string(nil), room.MemberIDs...)
	if room.Name != nil {
		n := *room.Name
		c.Name = &n
	}
	if room.LastMessage != nil {
		lm := *room.LastMessage
		c.LastMessage = &lm
	}
	return &c
}

func cloneMessage(m *domain.Message) *domain.Message {
	c := *m
	c.ReadBy = append([]string(nil), m.ReadBy...)
	return &c
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
