package usecase

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"unimarket/internal/client"
	"unimarket/internal/domain/entity"
	"unimarket/pkg/response"
)

// Function-field stubs shared by the usecase tests. Unset fields answer with
// zero values so each test only wires what it exercises.

type stubAuthAPI struct {
	loginFn   func(email, password string) (*client.AuthResult, error)
	meFn      func() (*entity.User, error)
	refreshFn func(refreshToken string) (*client.TokenPair, error)
	logoutFn  func() error

	meCalls      atomic.Int64
	refreshCalls atomic.Int64
}

func (s *stubAuthAPI) Login(_ context.Context, email, password string) (*client.AuthResult, error) {
	return s.loginFn(email, password)
}

func (s *stubAuthAPI) Me(_ context.Context) (*entity.User, error) {
	s.meCalls.Add(1)
	if s.meFn == nil {
		return &entity.User{ID: "self", Username: "self"}, nil
	}
	return s.meFn()
}

func (s *stubAuthAPI) Refresh(_ context.Context, refreshToken string) (*client.TokenPair, error) {
	s.refreshCalls.Add(1)
	return s.refreshFn(refreshToken)
}

func (s *stubAuthAPI) Logout(_ context.Context) error {
	if s.logoutFn == nil {
		return nil
	}
	return s.logoutFn()
}

type stubChatAPI struct {
	listConversationsFn func(page, limit int) ([]entity.Conversation, response.PageInfo, error)
	listMessagesFn      func(counterpartID string, page, limit int) ([]entity.Message, response.PageInfo, error)
	sendMessageFn       func(counterpartID string, input client.SendMessageInput) (*entity.Message, error)
	markReadFn          func(counterpartID string) error

	listConversationsCalls atomic.Int64
	listMessagesCalls      atomic.Int64
	sendCalls              atomic.Int64
	markReadCalls          atomic.Int64
}

func (s *stubChatAPI) ListConversations(_ context.Context, page, limit int) ([]entity.Conversation, response.PageInfo, error) {
	s.listConversationsCalls.Add(1)
	if s.listConversationsFn == nil {
		return nil, response.PageInfo{Page: page, TotalPages: page}, nil
	}
	return s.listConversationsFn(page, limit)
}

func (s *stubChatAPI) ListMessages(_ context.Context, counterpartID string, page, limit int) ([]entity.Message, response.PageInfo, error) {
	s.listMessagesCalls.Add(1)
	if s.listMessagesFn == nil {
		return nil, response.PageInfo{Page: page, TotalPages: page}, nil
	}
	return s.listMessagesFn(counterpartID, page, limit)
}

func (s *stubChatAPI) SendMessage(_ context.Context, counterpartID string, input client.SendMessageInput) (*entity.Message, error) {
	s.sendCalls.Add(1)
	return s.sendMessageFn(counterpartID, input)
}

func (s *stubChatAPI) MarkRead(_ context.Context, counterpartID string) error {
	s.markReadCalls.Add(1)
	if s.markReadFn == nil {
		return nil
	}
	return s.markReadFn(counterpartID)
}

type stubTransactionAPI struct {
	createFn  func(input client.CreateTransactionInput) (*entity.Transaction, error)
	getFn     func(id string) (*entity.Transaction, error)
	confirmFn func(id string, milestone entity.TransactionStatus) (*entity.Transaction, error)
	cancelFn  func(id string) (*entity.Transaction, error)
	reviewFn  func(id string, input client.SubmitReviewInput) (*entity.Transaction, error)

	confirmCalls atomic.Int64
	reviewCalls  atomic.Int64
}

func (s *stubTransactionAPI) CreateTransaction(_ context.Context, input client.CreateTransactionInput) (*entity.Transaction, error) {
	return s.createFn(input)
}

func (s *stubTransactionAPI) GetTransaction(_ context.Context, id string) (*entity.Transaction, error) {
	return s.getFn(id)
}

func (s *stubTransactionAPI) ConfirmMilestone(_ context.Context, id string, milestone entity.TransactionStatus) (*entity.Transaction, error) {
	s.confirmCalls.Add(1)
	return s.confirmFn(id, milestone)
}

func (s *stubTransactionAPI) CancelTransaction(_ context.Context, id string) (*entity.Transaction, error) {
	return s.cancelFn(id)
}

func (s *stubTransactionAPI) SubmitReview(_ context.Context, id string, input client.SubmitReviewInput) (*entity.Transaction, error) {
	s.reviewCalls.Add(1)
	return s.reviewFn(id, input)
}

type typingRecord struct {
	conversationID string
	typing         bool
}

type stubReceiptEmitter struct {
	mu       sync.Mutex
	markRead []string
	typing   []typingRecord
}

func (s *stubReceiptEmitter) SendMarkRead(conversationID string) {
	s.mu.Lock()
	s.markRead = append(s.markRead, conversationID)
	s.mu.Unlock()
}

func (s *stubReceiptEmitter) SendTyping(conversationID string, typing bool) {
	s.mu.Lock()
	s.typing = append(s.typing, typingRecord{conversationID: conversationID, typing: typing})
	s.mu.Unlock()
}

func (s *stubReceiptEmitter) typingEvents() []typingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]typingRecord, len(s.typing))
	copy(out, s.typing)
	return out
}

func (s *stubReceiptEmitter) markReadEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.markRead))
	copy(out, s.markRead)
	return out
}

type stubUploadAPI struct {
	uploadFn    func(filename string) (*entity.FileRef, error)
	uploadCalls atomic.Int64
}

func (s *stubUploadAPI) UploadAttachment(_ context.Context, filename string, _ io.Reader) (*entity.FileRef, error) {
	s.uploadCalls.Add(1)
	return s.uploadFn(filename)
}
