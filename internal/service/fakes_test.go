package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"douniyaconnect/internal/domain"
	"douniyaconnect/internal/repository"
	apperrors "douniyaconnect/pkg/errors"
)

// In-memory doubles for the repository interfaces. They mirror the SQL
// behavior closely enough for service-level tests: the pair index enforces
// private-conversation uniqueness, paging orders newest first, read state
// only moves for messages the reader did not send.

type fakeUserRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*domain.User
	sessions map[string]*domain.UserSession
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:     make(map[uuid.UUID]*domain.User),
		sessions: make(map[string]*domain.UserSession),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return apperrors.ErrUserAlreadyExists
		}
	}
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUserRepo) GetByInvitationToken(ctx context.Context, token uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.InvitationToken != nil && *u.InvitationToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return apperrors.ErrUserNotFound
	}
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) SearchByName(ctx context.Context, term string, limit int) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	term = strings.ToLower(term)
	var out []*domain.User
	for _, u := range f.byID {
		if !u.IsActive {
			continue
		}
		name := strings.ToLower(u.DisplayName() + " " + u.Username)
		if strings.Contains(name, term) {
			cp := *u
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeUserRepo) CreateSession(ctx context.Context, session *domain.UserSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.sessions[session.RefreshTokenHash] = &cp
	return nil
}

func (f *fakeUserRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[tokenHash]
	if !ok || s.RevokedAt != nil || s.ExpiresAt.Before(time.Now()) {
		return nil, apperrors.ErrInvalidToken
	}
	cp := *s
	return &cp, nil
}

func (f *fakeUserRepo) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == sessionID {
			now := time.Now()
			s.RevokedAt = &now
			s.RevokedReason = &reason
		}
	}
	return nil
}

type fakeConvRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Conversation
	pairs  map[string]int64
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		byID:  make(map[int64]*domain.Conversation),
		pairs: make(map[string]int64),
	}
}

func (f *fakeConvRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !conv.IsGroup && len(conv.Participants) == 2 {
		key := domain.PairKey(conv.Participants[0], conv.Participants[1])
		if _, taken := f.pairs[key]; taken {
			return repository.ErrPairExists
		}
		f.nextID++
		conv.ID = f.nextID
		f.pairs[key] = conv.ID
	} else {
		f.nextID++
		conv.ID = f.nextID
	}

	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	cp := *conv
	cp.Participants = append([]uuid.UUID(nil), conv.Participants...)
	f.byID[conv.ID] = &cp
	return nil
}

func (f *fakeConvRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	cp := *conv
	cp.Participants = append([]uuid.UUID(nil), conv.Participants...)
	return &cp, nil
}

func (f *fakeConvRepo) FindForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Conversation
	for _, conv := range f.byID {
		for _, p := range conv.Participants {
			if p == userID {
				cp := *conv
				cp.Participants = append([]uuid.UUID(nil), conv.Participants...)
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeConvRepo) FindPrivate(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.pairs[domain.PairKey(userA, userB)]
	if !ok {
		return nil, nil
	}
	conv := f.byID[id]
	cp := *conv
	cp.Participants = append([]uuid.UUID(nil), conv.Participants...)
	return &cp, nil
}

func (f *fakeConvRepo) IsParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.byID[conversationID]
	if !ok {
		return false, nil
	}
	for _, p := range conv.Participants {
		if p == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConvRepo) SearchByName(ctx context.Context, userID uuid.UUID, term string) ([]*domain.Conversation, error) {
	all, err := f.FindForUser(ctx, userID, 100, 0)
	if err != nil {
		return nil, err
	}
	var out []*domain.Conversation
	for _, conv := range all {
		if strings.Contains(strings.ToLower(conv.Name), strings.ToLower(term)) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (f *fakeConvRepo) Touch(ctx context.Context, conversationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.byID[conversationID]; ok {
		conv.UpdatedAt = time.Now()
	}
	return nil
}

type fakeMsgRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Message
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{byID: make(map[int64]*domain.Message)}
}

func (f *fakeMsgRepo) Create(ctx context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	f.byID[msg.ID] = &cp
	return nil
}

func (f *fakeMsgRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeMsgRepo) conversationMessages(conversationID int64) []*domain.Message {
	var out []*domain.Message
	for _, msg := range f.byID {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeMsgRepo) PageByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.conversationMessages(conversationID)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID > msgs[j].ID
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	if offset >= len(msgs) {
		return nil, nil
	}
	msgs = msgs[offset:]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]*domain.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeMsgRepo) CountUnread(ctx context.Context, conversationID int64, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, msg := range f.conversationMessages(conversationID) {
		if msg.SenderID != userID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeMsgRepo) FindUnread(ctx context.Context, conversationID int64, userID uuid.UUID) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Message
	for _, msg := range f.conversationMessages(conversationID) {
		if msg.SenderID != userID && !msg.IsRead {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMsgRepo) MarkAllRead(ctx context.Context, conversationID int64, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for _, msg := range f.conversationMessages(conversationID) {
		if msg.SenderID != userID && !msg.IsRead {
			msg.IsRead = true
			msg.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeMsgRepo) MarkRead(ctx context.Context, messageID int64, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.byID[messageID]
	if !ok || msg.SenderID == userID || msg.IsRead {
		return false, nil
	}
	now := time.Now()
	msg.IsRead = true
	msg.ReadAt = &now
	return true, nil
}

func (f *fakeMsgRepo) FindLast(ctx context.Context, conversationID int64) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.conversationMessages(conversationID)
	if len(msgs) == 0 {
		return nil, nil
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID > msgs[j].ID
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	cp := *msgs[0]
	return &cp, nil
}

type fakePresenceRepo struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{online: make(map[string]bool)}
}

func (f *fakePresenceRepo) SetOnline(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[username] = true
	return nil
}

func (f *fakePresenceRepo) Refresh(ctx context.Context, username string) error { return nil }

func (f *fakePresenceRepo) SetOffline(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.online, username)
	return nil
}

func (f *fakePresenceRepo) IsOnline(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[username], nil
}

type notified struct {
	Username string
	Event    domain.ChatNotification
}

type fakeNotifier struct {
	mu        sync.Mutex
	direct    []notified
	broadcast []domain.ChatNotification
}

func (f *fakeNotifier) NotifyUser(username string, event domain.ChatNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, notified{Username: username, Event: event})
}

func (f *fakeNotifier) BroadcastConversation(conversationID int64, event domain.ChatNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, event)
}

func (f *fakeNotifier) notifiedUsernames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.direct))
	for _, n := range f.direct {
		out = append(out, n.Username)
	}
	return out
}

func (f *fakeNotifier) directEvents() []notified {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notified(nil), f.direct...)
}

func (f *fakeNotifier) broadcasts() []domain.ChatNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatNotification(nil), f.broadcast...)
}
