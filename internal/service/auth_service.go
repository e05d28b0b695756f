package service

import (
	"context"
	"net"
	"strings"
	"time"

	"docchat-be/internal/dto"
	"docchat-be/internal/entity"
	"docchat-be/internal/pkg/apperror"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/pkg/mailer"
	"docchat-be/internal/repository/specification"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/pkg/events"
	pktNats "docchat-be/pkg/nats"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 1 * time.Hour
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResult, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

type authService struct {
	uowFactory     unitofwork.RepositoryFactory
	emailService   mailer.IEmailService
	mailPublisher  IPublisherService
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	jwtSecret      string
	jwtExpiry      time.Duration

	// lookupMX is swapped out in tests; production uses the resolver.
	lookupMX func(domain string) ([]*net.MX, error)
}

func NewAuthService(
	uowFactory unitofwork.RepositoryFactory,
	emailService mailer.IEmailService,
	mailPublisher IPublisherService,
	eventPublisher *pktNats.Publisher,
	sysLogger logger.ILogger,
	jwtSecret string,
	jwtExpiryHours int,
) IAuthService {
	return &authService{
		uowFactory:     uowFactory,
		emailService:   emailService,
		mailPublisher:  mailPublisher,
		eventPublisher: eventPublisher,
		logger:         sysLogger,
		jwtSecret:      jwtSecret,
		jwtExpiry:      time.Duration(jwtExpiryHours) * time.Hour,
		lookupMX:       net.LookupMX,
	}
}

func (s *authService) validateEmailDomain(email string) error {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return apperror.InvalidArgument("Invalid email address")
	}
	records, err := s.lookupMX(parts[1])
	if err != nil || len(records) == 0 {
		return apperror.InvalidArgument("Invalid email domain")
	}
	return nil
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		return nil, apperror.Conflict("User already exists")
	}

	if err := s.validateEmailDomain(req.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	user := &entity.User{
		Id:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		IsVerified:   false,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	verificationToken := &entity.EmailVerificationToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(verificationTokenTTL),
		CreatedAt: time.Now(),
	}

	// User and token land together or not at all.
	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.Internal(err)
	}
	defer uow.Rollback()

	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, apperror.Internal(err)
	}
	if err := uow.UserRepository().CreateEmailVerificationToken(ctx, verificationToken); err != nil {
		return nil, apperror.Internal(err)
	}
	if err := uow.Commit(); err != nil {
		return nil, apperror.Internal(err)
	}

	s.publishEvent(ctx, "USER_REGISTERED", map[string]interface{}{
		"user_id": user.Id,
		"email":   user.Email,
	})

	// Sent synchronously: the caller is told when the account exists but
	// the verification mail could not be delivered.
	if mailErr := s.emailService.SendVerificationLink(user.Email, verificationToken.Token); mailErr != nil {
		s.logger.Error("auth", "failed to send verification email", map[string]interface{}{
			"email": user.Email,
			"error": mailErr.Error(),
		})
		return &dto.RegisterResult{UserId: user.Id, Email: user.Email, EmailDeferred: true}, nil
	}

	return &dto.RegisterResult{UserId: user.Id, Email: user.Email}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperror.InvalidArgument("Token is required")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	tokenEntity, err := uow.UserRepository().FindEmailVerificationToken(ctx, specification.ByToken{Token: token})
	if err != nil {
		return apperror.Internal(err)
	}
	if tokenEntity == nil {
		return apperror.Unauthorized("Invalid or expired token")
	}
	if time.Now().After(tokenEntity.ExpiresAt) {
		return apperror.Unauthorized("Invalid or expired token")
	}

	if err := uow.Begin(ctx); err != nil {
		return apperror.Internal(err)
	}
	defer uow.Rollback()

	if err := uow.UserRepository().MarkVerified(ctx, tokenEntity.UserId); err != nil {
		return apperror.Internal(err)
	}
	if err := uow.UserRepository().DeleteEmailVerificationToken(ctx, tokenEntity.Id); err != nil {
		return apperror.Internal(err)
	}
	if err := uow.Commit(); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if user == nil {
		return nil, apperror.Unauthorized("User not found")
	}

	if !user.IsVerified {
		// Side effect of the failed login: queue a fresh verification mail.
		token := &entity.EmailVerificationToken{
			Id:        uuid.New(),
			UserId:    user.Id,
			Token:     uuid.New().String(),
			ExpiresAt: time.Now().Add(verificationTokenTTL),
			CreatedAt: time.Now(),
		}
		if err := uow.UserRepository().CreateEmailVerificationToken(ctx, token); err != nil {
			return nil, apperror.Internal(err)
		}
		if err := s.mailPublisher.PublishVerificationMail(ctx, user.Email, token.Token); err != nil {
			s.logger.Warn("auth", "failed to queue verification email", map[string]interface{}{
				"email": user.Email,
				"error": err.Error(),
			})
		}
		return nil, apperror.Unauthorized("Your email is not verified. A verification email has been sent, please check your inbox.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.Unauthorized("Invalid credentials")
	}

	claims := jwt.MapClaims{
		"user_id": user.Id.String(),
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, apperror.Internal(err)
	}

	s.publishEvent(ctx, "USER_LOGIN", map[string]interface{}{
		"user_id": user.Id,
		"time":    time.Now().Format(time.RFC822),
	})

	return &dto.LoginResponse{
		Token: signedToken,
		User: dto.UserDTO{
			Id:         user.Id,
			Email:      user.Email,
			IsVerified: user.IsVerified,
			CreatedAt:  user.CreatedAt,
		},
	}, nil
}

func (s *authService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil || user == nil {
		// Don't leak whether the account exists.
		return nil
	}

	resetToken := &entity.PasswordResetToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(resetTokenTTL),
		Used:      false,
		CreatedAt: time.Now(),
	}
	if err := uow.UserRepository().CreatePasswordResetToken(ctx, resetToken); err != nil {
		return apperror.Internal(err)
	}

	go func() {
		if mailErr := s.emailService.SendResetLink(user.Email, resetToken.Token); mailErr != nil {
			s.logger.Error("auth", "failed to send reset email", map[string]interface{}{
				"email": user.Email,
				"error": mailErr.Error(),
			})
		}
	}()

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	tokenEntity, err := uow.UserRepository().FindPasswordResetToken(ctx, specification.ByToken{Token: req.Token})
	if err != nil {
		return apperror.Internal(err)
	}
	if tokenEntity == nil {
		return apperror.Unauthorized("Invalid or expired token")
	}
	if tokenEntity.Used {
		return apperror.Unauthorized("This password reset link has already been used")
	}
	if time.Now().After(tokenEntity.ExpiresAt) {
		return apperror.Unauthorized("This password reset link has expired")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal(err)
	}

	if err := uow.Begin(ctx); err != nil {
		return apperror.Internal(err)
	}
	defer uow.Rollback()

	if err := uow.UserRepository().UpdatePassword(ctx, tokenEntity.UserId, string(hash)); err != nil {
		return apperror.Internal(err)
	}
	if err := uow.UserRepository().MarkResetTokenUsed(ctx, tokenEntity.Id); err != nil {
		return apperror.Internal(err)
	}
	if err := uow.Commit(); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (s *authService) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	event := events.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("auth", "failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}
