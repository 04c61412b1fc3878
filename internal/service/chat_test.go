package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douniyaconnect/internal/domain"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

type chatFixture struct {
	users    *fakeUserRepo
	convs    *fakeConvRepo
	msgs     *fakeMsgRepo
	presence *fakePresenceRepo
	notifier *fakeNotifier
	svc      ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	f := &chatFixture{
		users:    newFakeUserRepo(),
		convs:    newFakeConvRepo(),
		msgs:     newFakeMsgRepo(),
		presence: newFakePresenceRepo(),
		notifier: &fakeNotifier{},
	}
	f.svc = NewChatService(f.convs, f.msgs, f.users, f.presence, f.notifier, logger.NewNop())
	return f
}

func strPtr(s string) *string { return &s }

func (f *chatFixture) addIndividual(t *testing.T, username, first, last string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     username + "@example.com",
		Role:      domain.RoleIndividual,
		FirstName: strPtr(first),
		LastName:  strPtr(last),
		IsActive:  true,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *chatFixture) addEnterprise(t *testing.T, username, company string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:          uuid.New(),
		Username:    username,
		Email:       username + "@example.com",
		Role:        domain.RoleEnterprise,
		CompanyName: strPtr(company),
		IsActive:    true,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func TestCreateConversation_PrivateIsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")

	first, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	second, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	convs, err := f.svc.GetConversations(ctx, "alice", 20, 0)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestCreateConversation_ConcurrentSamePair(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")

	ids := make([]int64, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summary, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = summary.ID
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, ids[0], ids[1], "both creators must land on the same conversation")
}

func TestCreateConversation_UnknownParticipant(t *testing.T) {
	f := newChatFixture(t)
	f.addIndividual(t, "alice", "Alice", "Martin")

	_, err := f.svc.CreateConversation(context.Background(), "alice", "", false, []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCreateConversation_NeedsTwoParticipants(t *testing.T) {
	f := newChatFixture(t)
	alice := f.addIndividual(t, "alice", "Alice", "Martin")

	// Requester duplicated in the participant list collapses to one.
	_, err := f.svc.CreateConversation(context.Background(), "alice", "", false, []uuid.UUID{alice.ID})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestCreateConversation_PrivateNamedAfterOtherParticipant(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	f.addEnterprise(t, "acme", "Acme Corp")
	acme, _ := f.users.GetByUsername(ctx, "acme")

	summary, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{acme.ID})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", summary.Name)
	assert.Equal(t, "AC", summary.Avatar)

	// The same conversation viewed by the enterprise shows Alice.
	theirs, err := f.svc.GetConversations(ctx, "acme", 20, 0)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "Alice Martin", theirs[0].Name)
	assert.Equal(t, "AM", theirs[0].Avatar)
}

func TestCreateConversation_GroupKeepsStoredName(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	carol := f.addIndividual(t, "carol", "Carol", "Traore")

	summary, err := f.svc.CreateConversation(ctx, "alice", "Project X", true, []uuid.UUID{bob.ID, carol.ID})
	require.NoError(t, err)

	assert.Equal(t, "Project X", summary.Name)
	assert.True(t, summary.IsGroup)
	assert.Len(t, summary.Participants, 3)
}

func TestSendMessage_RequiresMembership(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	f.addIndividual(t, "mallory", "Mallory", "Smith")

	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "mallory", conv.ID, "hi", "TEXT", "", "", nil)
	require.ErrorIs(t, err, apperrors.ErrNotParticipant)

	_, err = f.svc.GetMessages(ctx, "mallory", conv.ID, 50, 0)
	require.ErrorIs(t, err, apperrors.ErrNotParticipant)

	err = f.svc.MarkAsRead(ctx, "mallory", conv.ID, nil)
	require.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestSendMessage_StrictTypeParsing(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	// Lowercase is accepted and normalized.
	msg, err := f.svc.SendMessage(ctx, "alice", conv.ID, "hello", "text", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeText, msg.Type)

	_, err = f.svc.SendMessage(ctx, "alice", conv.ID, "hello", "GIF", "", "", nil)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	// Attachment types without a file URL are rejected.
	_, err = f.svc.SendMessage(ctx, "alice", conv.ID, "", "IMAGE", "", "", nil)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	att, err := f.svc.SendMessage(ctx, "alice", conv.ID, "", "IMAGE", "https://cdn.example.com/p.png", "p.png", nil)
	require.NoError(t, err)
	require.NotNil(t, att.FileURL)
	assert.Equal(t, "https://cdn.example.com/p.png", *att.FileURL)
}

func TestSendMessage_ThreadedReply(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	parent, err := f.svc.SendMessage(ctx, "alice", conv.ID, "hello", "TEXT", "", "", nil)
	require.NoError(t, err)

	reply, err := f.svc.SendMessage(ctx, "bob", conv.ID, "hi back", "TEXT", "", "", &parent.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentMessageID)
	assert.Equal(t, parent.ID, *reply.ParentMessageID)
	require.NotNil(t, reply.ParentMessageContent)
	assert.Equal(t, "hello", *reply.ParentMessageContent)
}

func TestSendMessage_DanglingParentDropped(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	carol := f.addIndividual(t, "carol", "Carol", "Traore")

	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)
	otherConv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{carol.ID})
	require.NoError(t, err)

	missing := int64(9999)
	msg, err := f.svc.SendMessage(ctx, "alice", conv.ID, "reply", "TEXT", "", "", &missing)
	require.NoError(t, err)
	assert.Nil(t, msg.ParentMessageID)

	// A parent that belongs to another conversation is also dropped.
	foreign, err := f.svc.SendMessage(ctx, "alice", otherConv.ID, "elsewhere", "TEXT", "", "", nil)
	require.NoError(t, err)
	msg, err = f.svc.SendMessage(ctx, "alice", conv.ID, "reply", "TEXT", "", "", &foreign.ID)
	require.NoError(t, err)
	assert.Nil(t, msg.ParentMessageID)
}

func TestSendMessage_FanOutExcludesSender(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	carol := f.addIndividual(t, "carol", "Carol", "Traore")

	conv, err := f.svc.CreateConversation(ctx, "alice", "Team", true, []uuid.UUID{bob.ID, carol.ID})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "alice", conv.ID, "ping", "TEXT", "", "", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.notifier.notifiedUsernames()) == 2
	}, time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{"bob", "carol"}, f.notifier.notifiedUsernames())
	for _, n := range f.notifier.directEvents() {
		assert.Equal(t, domain.EventNewMessage, n.Event.Type)
		assert.Equal(t, conv.ID, n.Event.ConversationID)
		require.NotNil(t, n.Event.Message)
		assert.Equal(t, "ping", n.Event.Message.Content)
	}
}

func TestUnreadAccounting(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.SendMessage(ctx, "alice", conv.ID, "msg", "TEXT", "", "", nil)
		require.NoError(t, err)
	}

	// The sender's own messages never count against them.
	mine, err := f.svc.GetConversations(ctx, "alice", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), mine[0].UnreadCount)

	theirs, err := f.svc.GetConversations(ctx, "bob", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), theirs[0].UnreadCount)

	require.NoError(t, f.svc.MarkAsRead(ctx, "bob", conv.ID, nil))

	theirs, err = f.svc.GetConversations(ctx, "bob", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), theirs[0].UnreadCount)
}

func TestMarkAsRead_SelectiveSkipsOwnAndUnknown(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	fromAlice, err := f.svc.SendMessage(ctx, "alice", conv.ID, "one", "TEXT", "", "", nil)
	require.NoError(t, err)
	fromBob, err := f.svc.SendMessage(ctx, "bob", conv.ID, "two", "TEXT", "", "", nil)
	require.NoError(t, err)

	// Bob's own message and an unknown id are skipped without error.
	err = f.svc.MarkAsRead(ctx, "bob", conv.ID, []int64{fromAlice.ID, fromBob.ID, 424242})
	require.NoError(t, err)

	stored, err := f.msgs.GetByID(ctx, fromAlice.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRead)

	stored, err = f.msgs.GetByID(ctx, fromBob.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRead, "a sender cannot mark their own message read")

	// Marking again is a no-op.
	require.NoError(t, f.svc.MarkAsRead(ctx, "bob", conv.ID, []int64{fromAlice.ID}))
}

func TestGetMessages_NewestFirst(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third"} {
		_, err := f.svc.SendMessage(ctx, "alice", conv.ID, content, "TEXT", "", "", nil)
		require.NoError(t, err)
	}

	msgs, err := f.svc.GetMessages(ctx, "bob", conv.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "third", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "first", msgs[2].Content)

	page, err := f.svc.GetMessages(ctx, "bob", conv.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Content)
}

func TestConversationSummary_LastMessageAndPresence(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "bob", conv.ID, "latest", "TEXT", "", "", nil)
	require.NoError(t, err)
	require.NoError(t, f.presence.SetOnline(ctx, "bob"))

	summaries, err := f.svc.GetConversations(ctx, "alice", 20, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	require.NotNil(t, summary.LastMessage)
	assert.Equal(t, "latest", summary.LastMessage.Content)
	assert.Equal(t, "Bob Diallo", summary.LastMessage.SenderName)
	assert.True(t, summary.IsOnline)
}

func TestNotifyTyping(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	f.addIndividual(t, "mallory", "Mallory", "Smith")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	f.svc.NotifyTyping(ctx, "alice", conv.ID, true)
	f.svc.NotifyTyping(ctx, "alice", conv.ID, false)

	// Non-members are dropped silently.
	f.svc.NotifyTyping(ctx, "mallory", conv.ID, true)

	events := f.notifier.broadcasts()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventUserTyping, events[0].Type)
	assert.Equal(t, domain.EventUserStopTyping, events[1].Type)
	assert.Equal(t, "alice", events[0].Username)
}

func TestSearchConversations(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	carol := f.addIndividual(t, "carol", "Carol", "Traore")

	_, err := f.svc.CreateConversation(ctx, "alice", "Project X", true, []uuid.UUID{bob.ID, carol.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateConversation(ctx, "alice", "Budget 2026", true, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	found, err := f.svc.SearchConversations(ctx, "alice", "project")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Project X", found[0].Name)
}

func TestCanAccess(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	f.addIndividual(t, "mallory", "Mallory", "Smith")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	assert.True(t, f.svc.CanAccess(ctx, "bob", conv.ID))
	assert.False(t, f.svc.CanAccess(ctx, "mallory", conv.ID))
	assert.False(t, f.svc.CanAccess(ctx, "ghost", conv.ID))
}

func TestGetMessages_NegativeOffsetClamped(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addIndividual(t, "alice", "Alice", "Martin")
	bob := f.addIndividual(t, "bob", "Bob", "Diallo")
	conv, err := f.svc.CreateConversation(ctx, "alice", "", false, []uuid.UUID{bob.ID})
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := f.svc.SendMessage(ctx, "alice", conv.ID, content, "TEXT", "", "", nil)
		require.NoError(t, err)
	}

	msgs, err := f.svc.GetMessages(ctx, "alice", conv.ID, 50, -5)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "three", msgs[0].Content)

	convs, err := f.svc.GetConversations(ctx, "alice", 20, -1)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}
