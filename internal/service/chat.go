package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"douniyaconnect/internal/domain"
	"douniyaconnect/internal/repository"
	apperrors "douniyaconnect/pkg/errors"
	"douniyaconnect/pkg/logger"
)

// Notifier delivers push events to connected users. Fire-and-forget: no
// confirmation, no retry. The websocket hub is the production
// implementation.
type Notifier interface {
	NotifyUser(username string, event domain.ChatNotification)
	BroadcastConversation(conversationID int64, event domain.ChatNotification)
}

type ChatService interface {
	CreateConversation(ctx context.Context, username, name string, isGroup bool, participantIDs []uuid.UUID) (*domain.ConversationSummary, error)
	GetConversations(ctx context.Context, username string, limit, offset int) ([]*domain.ConversationSummary, error)
	SearchConversations(ctx context.Context, username, term string) ([]*domain.ConversationSummary, error)
	GetMessages(ctx context.Context, username string, conversationID int64, limit, offset int) ([]*domain.MessageView, error)
	SendMessage(ctx context.Context, username string, conversationID int64, content, messageType, fileURL, fileName string, parentMessageID *int64) (*domain.MessageView, error)
	MarkAsRead(ctx context.Context, username string, conversationID int64, messageIDs []int64) error
	NotifyTyping(ctx context.Context, username string, conversationID int64, typing bool)
	CanAccess(ctx context.Context, username string, conversationID int64) bool
}

type chatService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	presence repository.PresenceRepository
	notifier Notifier
	log      logger.Logger
}

func NewChatService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	presence repository.PresenceRepository,
	notifier Notifier,
	log logger.Logger,
) ChatService {
	return &chatService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		presence: presence,
		notifier: notifier,
		log:      log,
	}
}

func (s *chatService) CreateConversation(ctx context.Context, username, name string, isGroup bool, participantIDs []uuid.UUID) (*domain.ConversationSummary, error) {
	requester, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	// Participant set: requester plus the resolved ids, duplicates collapsed.
	seen := map[uuid.UUID]struct{}{requester.ID: {}}
	participants := []uuid.UUID{requester.ID}
	for _, id := range participantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: participant %s", apperrors.ErrUserNotFound, id)
			}
			return nil, err
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}

	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: a conversation needs at least two participants", apperrors.ErrBadRequest)
	}

	// A 1:1 between the same pair is idempotent: return the existing
	// conversation instead of creating a duplicate.
	if !isGroup && len(participants) == 2 {
		existing, err := s.convRepo.FindPrivate(ctx, participants[0], participants[1])
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.mapConversation(ctx, existing, requester)
		}
	}

	conv := &domain.Conversation{
		Name:         name,
		IsGroup:      isGroup,
		CreatedBy:    requester.ID,
		Participants: participants,
	}

	err = s.convRepo.Create(ctx, conv)
	if errors.Is(err, repository.ErrPairExists) {
		// Lost the race with a concurrent create for the same pair: the
		// unique pair key guarantees the winner is the one to return.
		existing, ferr := s.convRepo.FindPrivate(ctx, participants[0], participants[1])
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, err
		}
		return s.mapConversation(ctx, existing, requester)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Conversation created", "conversation_id", conv.ID, "name", conv.Name, "created_by", username)

	return s.mapConversation(ctx, conv, requester)
}

func (s *chatService) GetConversations(ctx context.Context, username string, limit, offset int) ([]*domain.ConversationSummary, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	convs, err := s.convRepo.FindForUser(ctx, user.ID, limit, offset)
	if err != nil {
		return nil, err
	}

	return s.mapConversations(ctx, convs, user)
}

func (s *chatService) SearchConversations(ctx context.Context, username, term string) ([]*domain.ConversationSummary, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	convs, err := s.convRepo.SearchByName(ctx, user.ID, term)
	if err != nil {
		return nil, err
	}

	return s.mapConversations(ctx, convs, user)
}

func (s *chatService) GetMessages(ctx context.Context, username string, conversationID int64, limit, offset int) ([]*domain.MessageView, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if _, err := s.convRepo.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}

	if err := s.requireParticipant(ctx, conversationID, user.ID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.msgRepo.PageByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		view, err := s.mapMessage(ctx, msg)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	return views, nil
}

func (s *chatService) SendMessage(ctx context.Context, username string, conversationID int64, content, messageType, fileURL, fileName string, parentMessageID *int64) (*domain.MessageView, error) {
	sender, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.requireParticipant(ctx, conversationID, sender.ID); err != nil {
		return nil, err
	}

	msgType, err := domain.ParseMessageType(messageType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBadRequest, err)
	}

	if msgType != domain.MessageTypeText && fileURL == "" {
		return nil, fmt.Errorf("%w: %s message requires a file_url", apperrors.ErrBadRequest, msgType)
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       sender.ID,
		Content:        content,
		Type:           msgType,
	}
	if fileURL != "" {
		msg.FileURL = &fileURL
	}
	if fileName != "" {
		msg.FileName = &fileName
	}

	// A missing parent, or a parent from another conversation, drops the
	// link silently; the message is still created.
	if parentMessageID != nil {
		parent, err := s.msgRepo.GetByID(ctx, *parentMessageID)
		if err == nil && parent.ConversationID == conversationID {
			msg.ParentMessageID = parentMessageID
		}
	}

	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.convRepo.Touch(ctx, conversationID); err != nil {
		s.log.Warn("Failed to touch conversation after send", "error", err, "conversation_id", conversationID)
	}

	view, err := s.mapMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.fanOut(conv, sender, view)

	s.log.Info("Message sent", "conversation_id", conversationID, "message_id", msg.ID, "sender", username)

	return view, nil
}

// fanOut pushes NEW_MESSAGE to every other participant on a background
// goroutine; the send response never waits for delivery.
func (s *chatService) fanOut(conv *domain.Conversation, sender *domain.User, view *domain.MessageView) {
	notification := domain.ChatNotification{
		Type:           domain.EventNewMessage,
		ConversationID: conv.ID,
		Message:        view,
		UserID:         sender.ID,
		Username:       sender.Username,
		Timestamp:      time.Now(),
	}

	recipients := make([]uuid.UUID, 0, len(conv.Participants))
	for _, id := range conv.Participants {
		if id != sender.ID {
			recipients = append(recipients, id)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, id := range recipients {
			user, err := s.userRepo.GetByID(ctx, id)
			if err != nil {
				s.log.Warn("Fan-out target not resolvable", "error", err, "user_id", id)
				continue
			}
			s.notifier.NotifyUser(user.Username, notification)
		}
	}()
}

func (s *chatService) MarkAsRead(ctx context.Context, username string, conversationID int64, messageIDs []int64) error {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := s.requireParticipant(ctx, conversationID, user.ID); err != nil {
		return err
	}

	if len(messageIDs) == 0 {
		n, err := s.msgRepo.MarkAllRead(ctx, conversationID, user.ID)
		if err != nil {
			return err
		}
		s.log.Debug("Marked all read", "conversation_id", conversationID, "user", username, "count", n)
		return nil
	}

	// Unknown ids and the requester's own messages are skipped silently.
	for _, id := range messageIDs {
		if _, err := s.msgRepo.MarkRead(ctx, id, user.ID); err != nil {
			return err
		}
	}

	return nil
}

// NotifyTyping relays a typing indicator to the conversation topic. Never
// persisted; membership violations are dropped rather than surfaced since
// there is no response channel worth failing.
func (s *chatService) NotifyTyping(ctx context.Context, username string, conversationID int64, typing bool) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return
	}

	ok, err := s.convRepo.IsParticipant(ctx, conversationID, user.ID)
	if err != nil || !ok {
		return
	}

	eventType := domain.EventUserTyping
	if !typing {
		eventType = domain.EventUserStopTyping
	}

	s.notifier.BroadcastConversation(conversationID, domain.ChatNotification{
		Type:           eventType,
		ConversationID: conversationID,
		UserID:         user.ID,
		Username:       username,
		Timestamp:      time.Now(),
	})
}

// CanAccess reports whether the user may subscribe to a conversation topic.
func (s *chatService) CanAccess(ctx context.Context, username string, conversationID int64) bool {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return false
	}
	ok, err := s.convRepo.IsParticipant(ctx, conversationID, user.ID)
	return err == nil && ok
}

func (s *chatService) requireParticipant(ctx context.Context, conversationID int64, userID uuid.UUID) error {
	ok, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotParticipant
	}
	return nil
}

func (s *chatService) mapConversations(ctx context.Context, convs []*domain.Conversation, viewer *domain.User) ([]*domain.ConversationSummary, error) {
	summaries := make([]*domain.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := s.mapConversation(ctx, conv, viewer)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// mapConversation builds the per-viewer projection: for a private 1:1 the
// stored name is replaced with the other participant's display name and the
// avatar with their initials. Computed here, never stored.
func (s *chatService) mapConversation(ctx context.Context, conv *domain.Conversation, viewer *domain.User) (*domain.ConversationSummary, error) {
	participants := make([]domain.ParticipantView, 0, len(conv.Participants))
	var other *domain.User
	for _, id := range conv.Participants {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user.ID != viewer.ID {
			other = user
		}
		participants = append(participants, s.mapParticipant(ctx, user))
	}

	name := conv.Name
	avatar := domain.Initials(name)
	isOnline := false

	if !conv.IsGroup && len(conv.Participants) == 2 && other != nil {
		name = other.DisplayName()
		avatar = domain.Initials(name)
		if s.presence != nil {
			isOnline, _ = s.presence.IsOnline(ctx, other.Username)
		}
	}

	var lastView *domain.MessageView
	last, err := s.msgRepo.FindLast(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		lastView, err = s.mapMessage(ctx, last)
		if err != nil {
			return nil, err
		}
	}

	unread, err := s.msgRepo.CountUnread(ctx, conv.ID, viewer.ID)
	if err != nil {
		return nil, err
	}

	return &domain.ConversationSummary{
		ID:           conv.ID,
		Name:         name,
		IsGroup:      conv.IsGroup,
		Avatar:       avatar,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		LastMessage:  lastView,
		UnreadCount:  unread,
		Participants: participants,
		IsOnline:     isOnline,
	}, nil
}

func (s *chatService) mapParticipant(ctx context.Context, user *domain.User) domain.ParticipantView {
	name := user.DisplayName()
	online := false
	if s.presence != nil {
		online, _ = s.presence.IsOnline(ctx, user.Username)
	}

	return domain.ParticipantView{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Name:     name,
		Avatar:   domain.Initials(name),
		Role:     user.Role,
		IsOnline: online,
	}
}

func (s *chatService) mapMessage(ctx context.Context, msg *domain.Message) (*domain.MessageView, error) {
	sender, err := s.userRepo.GetByID(ctx, msg.SenderID)
	if err != nil {
		return nil, err
	}

	senderName := sender.DisplayName()
	view := &domain.MessageView{
		Message:      *msg,
		SenderName:   senderName,
		SenderAvatar: domain.Initials(senderName),
	}

	if msg.ParentMessageID != nil {
		parent, err := s.msgRepo.GetByID(ctx, *msg.ParentMessageID)
		if err == nil {
			view.ParentMessageContent = &parent.Content
		}
	}

	return view, nil
}
