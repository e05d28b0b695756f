package service

import (
	"context"
	"errors"
	"sort"

	"docchat-be/internal/entity"
	"docchat-be/internal/repository/contract"
	"docchat-be/internal/repository/specification"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/pkg/gateway"

	"github.com/google/uuid"
)

// fakeStore is a shared in-memory backing store so every unit of work handed
// out by the fake factory sees the same data.
type fakeStore struct {
	users              map[uuid.UUID]*entity.User
	verificationTokens map[uuid.UUID]*entity.EmailVerificationToken
	resetTokens        map[uuid.UUID]*entity.PasswordResetToken
	sessions           map[uuid.UUID]*entity.ChatSession
	deletedSessions    map[uuid.UUID]*entity.ChatSession
	messages           map[uuid.UUID]*entity.ChatMessage
	citations          map[uuid.UUID]*entity.ChatCitation
	exchanges          int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:              make(map[uuid.UUID]*entity.User),
		verificationTokens: make(map[uuid.UUID]*entity.EmailVerificationToken),
		resetTokens:        make(map[uuid.UUID]*entity.PasswordResetToken),
		sessions:           make(map[uuid.UUID]*entity.ChatSession),
		deletedSessions:    make(map[uuid.UUID]*entity.ChatSession),
		messages:           make(map[uuid.UUID]*entity.ChatMessage),
		citations:          make(map[uuid.UUID]*entity.ChatCitation),
	}
}

type fakeFactory struct {
	store *fakeStore
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{store: newFakeStore()}
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: f.store}
}

type fakeUow struct {
	store *fakeStore
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) UserRepository() contract.UserRepository {
	return &fakeUserRepo{store: u.store}
}
func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository {
	return &fakeSessionRepo{store: u.store}
}
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository {
	return &fakeMessageRepo{store: u.store}
}
func (u *fakeUow) ChatCitationRepository() contract.ChatCitationRepository {
	return &fakeCitationRepo{store: u.store}
}
func (u *fakeUow) GatewayExchangeRepository() contract.GatewayExchangeRepository {
	return &fakeExchangeRepo{store: u.store}
}

// specFilter collects the criteria the fakes understand.
type specFilter struct {
	id             *uuid.UUID
	userId         *uuid.UUID
	email          string
	token          string
	sessionId      *uuid.UUID
	msgIds         []uuid.UUID
	orderDesc      bool
	includeDeleted bool
}

func parseSpecs(specs []specification.Specification) specFilter {
	var f specFilter
	for _, s := range specs {
		switch spec := s.(type) {
		case specification.ByID:
			id := spec.ID
			f.id = &id
		case specification.ByUserID:
			id := spec.UserID
			f.userId = &id
		case specification.ByEmail:
			f.email = spec.Email
		case specification.ByToken:
			f.token = spec.Token
		case specification.ByChatSessionID:
			id := spec.ChatSessionID
			f.sessionId = &id
		case specification.ByChatMessageIDs:
			f.msgIds = spec.ChatMessageIDs
		case specification.OrderBy:
			f.orderDesc = spec.Desc
		case specification.IncludeDeleted:
			f.includeDeleted = true
		}
	}
	return f
}

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.store.users[user.Id] = user
	return nil
}

func (r *fakeUserRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	f := parseSpecs(specs)
	for _, u := range r.store.users {
		if f.id != nil && u.Id != *f.id {
			continue
		}
		if f.email != "" && u.Email != f.email {
			continue
		}
		return u, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.store.users)), nil
}

func (r *fakeUserRepo) MarkVerified(ctx context.Context, userId uuid.UUID) error {
	u, ok := r.store.users[userId]
	if !ok {
		return errors.New("user not found")
	}
	u.IsVerified = true
	return nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userId uuid.UUID, passwordHash string) error {
	u, ok := r.store.users[userId]
	if !ok {
		return errors.New("user not found")
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) CreateEmailVerificationToken(ctx context.Context, token *entity.EmailVerificationToken) error {
	r.store.verificationTokens[token.Id] = token
	return nil
}

func (r *fakeUserRepo) FindEmailVerificationToken(ctx context.Context, specs ...specification.Specification) (*entity.EmailVerificationToken, error) {
	f := parseSpecs(specs)
	for _, t := range r.store.verificationTokens {
		if f.token != "" && t.Token != f.token {
			continue
		}
		return t, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) DeleteEmailVerificationToken(ctx context.Context, id uuid.UUID) error {
	delete(r.store.verificationTokens, id)
	return nil
}

func (r *fakeUserRepo) CreatePasswordResetToken(ctx context.Context, token *entity.PasswordResetToken) error {
	r.store.resetTokens[token.Id] = token
	return nil
}

func (r *fakeUserRepo) FindPasswordResetToken(ctx context.Context, specs ...specification.Specification) (*entity.PasswordResetToken, error) {
	f := parseSpecs(specs)
	for _, t := range r.store.resetTokens {
		if f.token != "" && t.Token != f.token {
			continue
		}
		return t, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) MarkResetTokenUsed(ctx context.Context, id uuid.UUID) error {
	t, ok := r.store.resetTokens[id]
	if !ok {
		return errors.New("token not found")
	}
	t.Used = true
	return nil
}

type fakeSessionRepo struct {
	store *fakeStore
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.ChatSession) error {
	r.store.sessions[session.Id] = session
	return nil
}

// Delete mirrors the soft delete: the row leaves the default scope but
// stays visible to unscoped counts.
func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if s, ok := r.store.sessions[id]; ok {
		r.store.deletedSessions[id] = s
		delete(r.store.sessions, id)
	}
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	f := parseSpecs(specs)
	for _, s := range r.store.sessions {
		if f.id != nil && s.Id != *f.id {
			continue
		}
		if f.userId != nil && s.UserId != *f.userId {
			continue
		}
		return s, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	f := parseSpecs(specs)
	var result []*entity.ChatSession
	for _, s := range r.store.sessions {
		if f.userId != nil && s.UserId != *f.userId {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(a, b int) bool {
		if f.orderDesc {
			return result[a].CreatedAt.After(result[b].CreatedAt)
		}
		return result[a].CreatedAt.Before(result[b].CreatedAt)
	})
	return result, nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	f := parseSpecs(specs)
	var count int64
	for _, s := range r.store.sessions {
		if f.userId != nil && s.UserId != *f.userId {
			continue
		}
		count++
	}
	if f.includeDeleted {
		for _, s := range r.store.deletedSessions {
			if f.userId != nil && s.UserId != *f.userId {
				continue
			}
			count++
		}
	}
	return count, nil
}

type fakeMessageRepo struct {
	store *fakeStore
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *entity.ChatMessage) error {
	r.store.messages[message.Id] = message
	return nil
}

func (r *fakeMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	f := parseSpecs(specs)
	var result []*entity.ChatMessage
	for _, m := range r.store.messages {
		if f.sessionId != nil && m.ChatSessionId != *f.sessionId {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].Position < result[b].Position
	})
	return result, nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	f := parseSpecs(specs)
	var count int64
	for _, m := range r.store.messages {
		if f.sessionId != nil && m.ChatSessionId != *f.sessionId {
			continue
		}
		count++
	}
	return count, nil
}

type fakeCitationRepo struct {
	store *fakeStore
}

func (r *fakeCitationRepo) CreateBatch(ctx context.Context, citations []*entity.ChatCitation) error {
	for _, c := range citations {
		r.store.citations[c.Id] = c
	}
	return nil
}

func (r *fakeCitationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatCitation, error) {
	f := parseSpecs(specs)
	var result []*entity.ChatCitation
	for _, c := range r.store.citations {
		for _, id := range f.msgIds {
			if c.ChatMessageId == id {
				result = append(result, c)
				break
			}
		}
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.Before(result[b].CreatedAt)
	})
	return result, nil
}

type fakeExchangeRepo struct {
	store *fakeStore
}

func (r *fakeExchangeRepo) Record(ctx context.Context, question string, payload []byte) error {
	r.store.exchanges++
	return nil
}

type fakeGateway struct {
	result *gateway.AskResult
	err    error

	gotQuestion string
	gotHistory  []gateway.HistoryEntry
}

func (g *fakeGateway) Ask(ctx context.Context, question string, history []gateway.HistoryEntry) (*gateway.AskResult, error) {
	g.gotQuestion = question
	g.gotHistory = history
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type fakeMailer struct {
	verificationSent []string
	resetSent        []string
	err              error
}

func (m *fakeMailer) SendVerificationLink(email, token string) error {
	if m.err != nil {
		return m.err
	}
	m.verificationSent = append(m.verificationSent, email)
	return nil
}

func (m *fakeMailer) SendResetLink(email, token string) error {
	if m.err != nil {
		return m.err
	}
	m.resetSent = append(m.resetSent, email)
	return nil
}

type fakeMailPublisher struct {
	published []string
}

func (p *fakeMailPublisher) PublishVerificationMail(ctx context.Context, email, token string) error {
	p.published = append(p.published, email)
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(module, message string, details map[string]interface{}) {}
func (noopLogger) Info(module, message string, details map[string]interface{})  {}
func (noopLogger) Warn(module, message string, details map[string]interface{})  {}
func (noopLogger) Error(module, message string, details map[string]interface{}) {}
func (noopLogger) Sync() error                                                  { return nil }
