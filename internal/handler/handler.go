package handler

import (
	"errors"

	"github.com/akin525/bills-ledger/internal/config"
	"github.com/akin525/bills-ledger/internal/event"
	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"
	"github.com/akin525/bills-ledger/internal/service"
	"github.com/akin525/bills-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService         *service.AuthService
	billService         *service.BillService
	transactionService  *service.TransactionService
	conversationService *service.ConversationService
	friendService       *service.FriendService
	notificationService *service.NotificationService
	organizationService *service.OrganizationService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, dispatcher *event.Dispatcher) *Handler {
	billService := service.NewBillService(db, rdb, cfg, dispatcher)
	return &Handler{
		authService:         service.NewAuthService(db, cfg),
		billService:         billService,
		transactionService:  service.NewTransactionService(db, rdb, cfg, dispatcher, billService),
		conversationService: service.NewConversationService(db, dispatcher),
		friendService:       service.NewFriendService(db, dispatcher),
		notificationService: service.NewNotificationService(db),
		organizationService: service.NewOrganizationService(db),
	}
}

// writeError 把领域错误翻译成统一响应码
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrBillNotFound):
		response.BusinessError(c, response.CodeBillNotFound, err.Error())
	case errors.Is(err, repository.ErrBillStatusInvalid):
		response.BusinessError(c, response.CodeBillStatusInvalid, err.Error())
	case errors.Is(err, model.ErrInvalidPayment),
		errors.Is(err, model.ErrAmountMismatch):
		response.BusinessError(c, response.CodeAmountMismatch, err.Error())
	case errors.Is(err, model.ErrAlreadyPaid):
		response.BusinessError(c, response.CodeAlreadyPaid, err.Error())
	case errors.Is(err, repository.ErrParticipantNotFound),
		errors.Is(err, repository.ErrNotConvParticipant),
		errors.Is(err, service.ErrBillAccessDenied),
		errors.Is(err, service.ErrTransactionAccessDenied):
		response.BusinessError(c, response.CodeNotParticipant, err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound):
		response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
	case errors.Is(err, repository.ErrTransactionImmutable):
		response.BusinessError(c, response.CodeTransactionImmutable, err.Error())
	case errors.Is(err, repository.ErrAlreadyFriends):
		response.BusinessError(c, response.CodeAlreadyFriends, err.Error())
	case errors.Is(err, repository.ErrRequestExists):
		response.BusinessError(c, response.CodeRequestExists, err.Error())
	case errors.Is(err, repository.ErrRequestProcessed):
		response.BusinessError(c, response.CodeRequestProcessed, err.Error())
	case errors.Is(err, repository.ErrUserExists):
		response.BusinessError(c, response.CodeUserExists, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, repository.ErrResetTokenInvalid):
		response.BusinessError(c, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, repository.ErrOrgMemberNotFound):
		response.BusinessError(c, response.CodeNotMember, err.Error())
	case errors.Is(err, service.ErrCreatorImmutable):
		response.BusinessError(c, response.CodeCreatorImmutable, err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrConversationNotFound),
		errors.Is(err, repository.ErrRequestNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrOrgNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrNotBillCreator),
		errors.Is(err, service.ErrNotRequestReceiver),
		errors.Is(err, service.ErrNotOrgAdmin),
		errors.Is(err, service.ErrNotOrgCreator):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrSelfTransfer),
		errors.Is(err, service.ErrSelfFriendRequest),
		errors.Is(err, service.ErrSelfConversation),
		errors.Is(err, service.ErrDirectImmutable),
		errors.Is(err, service.ErrGroupNameRequired),
		errors.Is(err, service.ErrBillNotDeletable),
		errors.Is(err, repository.ErrAlreadyParticipant),
		errors.Is(err, repository.ErrOrgMemberExists):
		response.BusinessError(c, response.CodeBusinessError, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
