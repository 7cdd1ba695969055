package usecase

import (
	"context"
	"io"

	"unimarket/internal/client"
	"unimarket/internal/domain/entity"
	"unimarket/pkg/response"
)

// AuthAPI is the slice of the REST client the session layer consumes.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*client.AuthResult, error)
	Me(ctx context.Context) (*entity.User, error)
	Refresh(ctx context.Context, refreshToken string) (*client.TokenPair, error)
	Logout(ctx context.Context) error
}

// ChatAPI is the conversation/message surface of the REST client.
type ChatAPI interface {
	ListConversations(ctx context.Context, page, limit int) ([]entity.Conversation, response.PageInfo, error)
	ListMessages(ctx context.Context, counterpartID string, page, limit int) ([]entity.Message, response.PageInfo, error)
	SendMessage(ctx context.Context, counterpartID string, input client.SendMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, counterpartID string) error
}

// TransactionAPI is the transaction surface of the REST client.
type TransactionAPI interface {
	CreateTransaction(ctx context.Context, input client.CreateTransactionInput) (*entity.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*entity.Transaction, error)
	ConfirmMilestone(ctx context.Context, id string, milestone entity.TransactionStatus) (*entity.Transaction, error)
	CancelTransaction(ctx context.Context, id string) (*entity.Transaction, error)
	SubmitReview(ctx context.Context, transactionID string, input client.SubmitReviewInput) (*entity.Transaction, error)
}

// UploadAPI is the attachment surface of the REST client.
type UploadAPI interface {
	UploadAttachment(ctx context.Context, filename string, content io.Reader) (*entity.FileRef, error)
}
