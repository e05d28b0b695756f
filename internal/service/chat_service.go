package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"docchat-be/internal/dto"
	"docchat-be/internal/entity"
	"docchat-be/internal/pkg/apperror"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/memory"
	"docchat-be/internal/repository/specification"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/pkg/events"
	"docchat-be/pkg/gateway"
	pktNats "docchat-be/pkg/nats"

	"github.com/google/uuid"
)

// TitleMaxLength bounds session titles derived from the first human turn.
const TitleMaxLength = 32

type IChatService interface {
	SaveTurns(ctx context.Context, req *dto.SaveChatRequest) (*dto.SessionDTO, uuid.UUID, error)
	ListSessions(ctx context.Context, userId string) ([]dto.SessionSummaryDTO, error)
	ListSessionsGrouped(ctx context.Context, userId string) ([]dto.SessionGroupDTO, error)
	GetSession(ctx context.Context, userId, chatId string) ([]dto.TurnDTO, error)
	DeleteSession(ctx context.Context, userId, chatId string) error
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	gateway        gateway.IAnswerGateway
	listingCache   *memory.ListingCache
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	now            func() time.Time
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	answerGateway gateway.IAnswerGateway,
	listingCache *memory.ListingCache,
	eventPublisher *pktNats.Publisher,
	sysLogger logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:     uowFactory,
		gateway:        answerGateway,
		listingCache:   listingCache,
		eventPublisher: eventPublisher,
		logger:         sysLogger,
		now:            time.Now,
	}
}

// TruncateTitle derives a session title from the first human turn. Text at
// or under the limit passes through unchanged; longer text is cut at the
// limit, backed off to the last space inside the cut so no word is split,
// and suffixed with an ellipsis marker.
func TruncateTitle(message string, maxLength int) string {
	runes := []rune(message)
	if len(runes) <= maxLength {
		return message
	}

	truncated := string(runes[:maxLength])
	if idx := strings.LastIndex(truncated, " "); idx != -1 {
		truncated = truncated[:idx]
	}

	return truncated + "..."
}

// SaveTurns appends a human turn and, when present, its paired assistant
// turn to a session, creating the session first when chatId is absent or
// does not resolve for this user. The whole update runs in one transaction:
// either both turns (and citations) land or none do, so concurrent saves
// for the same user cannot lose each other's appends.
func (s *chatService) SaveTurns(ctx context.Context, req *dto.SaveChatRequest) (*dto.SessionDTO, uuid.UUID, error) {
	userId, err := uuid.Parse(req.UserId)
	if err != nil {
		return nil, uuid.Nil, apperror.InvalidArgument("Invalid user ID")
	}

	var chatId uuid.UUID
	if req.ChatId != "" {
		chatId, err = uuid.Parse(req.ChatId)
		if err != nil {
			return nil, uuid.Nil, apperror.InvalidArgument("Invalid chat ID")
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, uuid.Nil, apperror.Internal(err)
	}
	defer uow.Rollback()

	var session *entity.ChatSession
	if chatId != uuid.Nil {
		session, err = uow.ChatSessionRepository().FindOne(ctx,
			specification.ByID{ID: chatId},
			specification.ByUserID{UserID: userId},
		)
		if err != nil {
			return nil, uuid.Nil, apperror.Internal(err)
		}
	}

	if session == nil {
		session = &entity.ChatSession{
			Id:        uuid.New(),
			UserId:    userId,
			Title:     TruncateTitle(req.Message, TitleMaxLength),
			CreatedAt: s.now(),
		}
		if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
			return nil, uuid.Nil, apperror.Internal(err)
		}
	}

	// Positions continue the session's sequence; the transaction holds the
	// count stable against a concurrent append.
	turnCount, err := uow.ChatMessageRepository().Count(ctx,
		specification.ByChatSessionID{ChatSessionID: session.Id},
	)
	if err != nil {
		return nil, uuid.Nil, apperror.Internal(err)
	}

	humanTurn := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          entity.RoleHuman,
		Content:       req.Message,
		Position:      int(turnCount) + 1,
		CreatedAt:     s.now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, humanTurn); err != nil {
		return nil, uuid.Nil, apperror.Internal(err)
	}

	if req.AiResponse != "" {
		aiTurn := &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: session.Id,
			Role:          entity.RoleAssistant,
			Content:       req.AiResponse,
			Position:      int(turnCount) + 2,
			CreatedAt:     s.now(),
		}
		if err := uow.ChatMessageRepository().Create(ctx, aiTurn); err != nil {
			return nil, uuid.Nil, apperror.Internal(err)
		}

		if len(req.Sources) > 0 {
			citations := make([]*entity.ChatCitation, len(req.Sources))
			for i, src := range req.Sources {
				page := src.Page
				if page == "" {
					page = "N/A"
				}
				citations[i] = &entity.ChatCitation{
					Id:            uuid.New(),
					ChatMessageId: aiTurn.Id,
					File:          src.File,
					Page:          page,
					Link:          src.Link,
					CreatedAt:     s.now(),
				}
			}
			if err := uow.ChatCitationRepository().CreateBatch(ctx, citations); err != nil {
				return nil, uuid.Nil, apperror.Internal(err)
			}
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, uuid.Nil, apperror.Internal(err)
	}

	s.listingCache.Invalidate(userId)
	s.publishEvent(ctx, "CHAT_SAVED", map[string]interface{}{
		"user_id": userId,
		"chat_id": session.Id,
	})

	turns, err := s.loadTurns(ctx, session.Id)
	if err != nil {
		return nil, uuid.Nil, err
	}

	return &dto.SessionDTO{
		Id:        session.Id,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		Turns:     turns,
	}, session.Id, nil
}

func (s *chatService) ListSessions(ctx context.Context, userId string) ([]dto.SessionSummaryDTO, error) {
	sessions, err := s.fetchSessions(ctx, userId)
	if err != nil {
		return nil, err
	}

	result := make([]dto.SessionSummaryDTO, len(sessions))
	for i, session := range sessions {
		result[i] = dto.SessionSummaryDTO{
			Id:        session.Id,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
		}
	}
	return result, nil
}

func (s *chatService) ListSessionsGrouped(ctx context.Context, userId string) ([]dto.SessionGroupDTO, error) {
	sessions, err := s.fetchSessions(ctx, userId)
	if err != nil {
		return nil, err
	}
	return GroupSessionsByRecency(sessions, s.now()), nil
}

func (s *chatService) fetchSessions(ctx context.Context, userIdStr string) ([]*entity.ChatSession, error) {
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return nil, apperror.InvalidArgument("Invalid user ID")
	}

	if cached, found := s.listingCache.Get(userId); found {
		return cached, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	s.listingCache.Save(userId, sessions)
	return sessions, nil
}

// GroupSessionsByRecency buckets sessions by elapsed days since creation:
// under a day, under a week, under thirty days, and everything older. Empty
// buckets are omitted, the bucket order is fixed from most recent to oldest,
// and each bucket is sorted newest first.
func GroupSessionsByRecency(sessions []*entity.ChatSession, now time.Time) []dto.SessionGroupDTO {
	labels := []string{"Today", "Last 7 Days", "Last 30 Days", "Older"}
	buckets := make([][]*entity.ChatSession, len(labels))

	for _, session := range sessions {
		daysAgo := now.Sub(session.CreatedAt).Hours() / 24
		switch {
		case daysAgo < 1:
			buckets[0] = append(buckets[0], session)
		case daysAgo < 7:
			buckets[1] = append(buckets[1], session)
		case daysAgo < 30:
			buckets[2] = append(buckets[2], session)
		default:
			buckets[3] = append(buckets[3], session)
		}
	}

	groups := make([]dto.SessionGroupDTO, 0, len(labels))
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		sort.SliceStable(bucket, func(a, b int) bool {
			return bucket[a].CreatedAt.After(bucket[b].CreatedAt)
		})
		chats := make([]dto.SessionSummaryDTO, len(bucket))
		for j, session := range bucket {
			chats[j] = dto.SessionSummaryDTO{
				Id:        session.Id,
				Title:     session.Title,
				CreatedAt: session.CreatedAt,
			}
		}
		groups = append(groups, dto.SessionGroupDTO{Label: labels[i], Chats: chats})
	}
	return groups
}

// GetSession returns the ordered turns of one session. A session that does
// not exist (or was deleted) yields an empty list, not an error.
func (s *chatService) GetSession(ctx context.Context, userIdStr, chatIdStr string) ([]dto.TurnDTO, error) {
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return nil, apperror.InvalidArgument("Invalid user ID or Chat ID")
	}
	chatId, err := uuid.Parse(chatIdStr)
	if err != nil {
		return nil, apperror.InvalidArgument("Invalid user ID or Chat ID")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: chatId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if session == nil {
		return []dto.TurnDTO{}, nil
	}

	return s.loadTurns(ctx, session.Id)
}

func (s *chatService) loadTurns(ctx context.Context, sessionId uuid.UUID) ([]dto.TurnDTO, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "position"},
	)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	assistantIds := make([]uuid.UUID, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == entity.RoleAssistant {
			assistantIds = append(assistantIds, msg.Id)
		}
	}

	citationsByMessage := make(map[uuid.UUID][]dto.SourceDTO)
	if len(assistantIds) > 0 {
		citations, err := uow.ChatCitationRepository().FindAll(ctx,
			specification.ByChatMessageIDs{ChatMessageIDs: assistantIds},
			specification.OrderBy{Field: "created_at"},
		)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		for _, c := range citations {
			citationsByMessage[c.ChatMessageId] = append(citationsByMessage[c.ChatMessageId], dto.SourceDTO{
				File: c.File,
				Page: c.Page,
				Link: c.Link,
			})
		}
	}

	turns := make([]dto.TurnDTO, len(messages))
	for i, msg := range messages {
		turns[i] = dto.TurnDTO{
			Id:        msg.Id,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
			Sources:   citationsByMessage[msg.Id],
		}
	}
	return turns, nil
}

// DeleteSession removes one session. A user who never had a session is a
// NotFound; deleting an id that is already gone succeeds, so retried
// deletes are harmless.
func (s *chatService) DeleteSession(ctx context.Context, userIdStr, chatIdStr string) error {
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return apperror.InvalidArgument("Invalid user ID or Chat ID")
	}
	chatId, err := uuid.Parse(chatIdStr)
	if err != nil {
		return apperror.InvalidArgument("Invalid user ID or Chat ID")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	// Counts deleted sessions too, so retrying a delete after the last
	// session is gone still succeeds.
	count, err := uow.ChatSessionRepository().Count(ctx,
		specification.ByUserID{UserID: userId},
		specification.IncludeDeleted{},
	)
	if err != nil {
		return apperror.Internal(err)
	}
	if count == 0 {
		return apperror.NotFound("Chat not found for this user")
	}

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: chatId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return apperror.Internal(err)
	}
	if session == nil {
		return nil
	}

	if err := uow.ChatSessionRepository().Delete(ctx, session.Id); err != nil {
		return apperror.Internal(err)
	}

	s.listingCache.Invalidate(userId)
	return nil
}

// Ask is the stateless pass-through to the answering service: nothing is
// persisted to any session, only the raw exchange audit row is written.
func (s *chatService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	history := make([]gateway.HistoryEntry, len(req.ChatHistory))
	for i, h := range req.ChatHistory {
		history[i] = gateway.HistoryEntry{Role: h.Role, Content: h.Content}
	}

	result, err := s.gateway.Ask(ctx, req.Question, history)
	if err != nil {
		return nil, apperror.Upstream("Failed to get a response from the assistant", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if recordErr := uow.GatewayExchangeRepository().Record(ctx, req.Question, result.Raw); recordErr != nil {
		s.logger.Warn("chat", "failed to record gateway exchange", map[string]interface{}{
			"error": recordErr.Error(),
		})
	}

	combined := append([]dto.AskHistoryDTO{}, req.ChatHistory...)
	for _, h := range result.History {
		combined = append(combined, dto.AskHistoryDTO{Role: h.Role, Content: h.Content})
	}

	sources := make([]dto.SourceDTO, len(result.Sources))
	for i, src := range result.Sources {
		page := src.Page
		if page == "" {
			page = "N/A"
		}
		sources[i] = dto.SourceDTO{File: src.File, Page: page, Link: src.Link}
	}

	return &dto.AskResponse{
		Answer:      result.Answer,
		ChatHistory: combined,
		Sources:     sources,
	}, nil
}

func (s *chatService) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	event := events.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: s.now(),
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("chat", "failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}
