package service

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"docchat-be/internal/dto"
	"docchat-be/internal/entity"
	"docchat-be/internal/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(factory *fakeFactory, mail *fakeMailer, pub *fakeMailPublisher) *authService {
	return &authService{
		uowFactory:    factory,
		emailService:  mail,
		mailPublisher: pub,
		logger:        noopLogger{},
		jwtSecret:     "test_secret",
		jwtExpiry:     24 * time.Hour,
		lookupMX: func(domain string) ([]*net.MX, error) {
			return []*net.MX{{Host: "mx." + domain}}, nil
		},
	}
}

func seedUser(factory *fakeFactory, email, password string, verified bool) *entity.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	user := &entity.User{
		Id:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		IsVerified:   verified,
		CreatedAt:    time.Now(),
	}
	factory.store.users[user.Id] = user
	return user
}

func TestRegister(t *testing.T) {
	factory := newFakeFactory()
	mail := &fakeMailer{}
	svc := newTestAuthService(factory, mail, &fakeMailPublisher{})

	res, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "alice@example.com",
		Password: "secret123",
	})

	require.NoError(t, err)
	assert.False(t, res.EmailDeferred)
	assert.Equal(t, []string{"alice@example.com"}, mail.verificationSent)
	require.Len(t, factory.store.users, 1)
	require.Len(t, factory.store.verificationTokens, 1)
	for _, u := range factory.store.users {
		assert.False(t, u.IsVerified)
		assert.NotEqual(t, "secret123", u.PasswordHash)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	seedUser(factory, "alice@example.com", "secret123", true)

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "alice@example.com",
		Password: "another",
	})
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestRegisterBadDomain(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	svc.lookupMX = func(domain string) ([]*net.MX, error) {
		return nil, errors.New("no such host")
	}

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "bob@nonexistent.invalid",
		Password: "secret123",
	})
	assert.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
	assert.Empty(t, factory.store.users)
}

func TestRegisterMailFailureIsPartialSuccess(t *testing.T) {
	factory := newFakeFactory()
	mail := &fakeMailer{err: errors.New("smtp down")}
	svc := newTestAuthService(factory, mail, &fakeMailPublisher{})

	res, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "carol@example.com",
		Password: "secret123",
	})

	require.NoError(t, err)
	assert.True(t, res.EmailDeferred)
	assert.Len(t, factory.store.users, 1)
}

func TestVerifyEmail(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	user := seedUser(factory, "alice@example.com", "secret123", false)

	token := &entity.EmailVerificationToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     "valid-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	factory.store.verificationTokens[token.Id] = token

	require.NoError(t, svc.VerifyEmail(context.Background(), "valid-token"))
	assert.True(t, user.IsVerified)
	assert.Empty(t, factory.store.verificationTokens)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	user := seedUser(factory, "alice@example.com", "secret123", false)

	token := &entity.EmailVerificationToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	factory.store.verificationTokens[token.Id] = token

	err := svc.VerifyEmail(context.Background(), "expired-token")
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	assert.False(t, user.IsVerified)
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})

	err := svc.VerifyEmail(context.Background(), "nope")
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	err = svc.VerifyEmail(context.Background(), "")
	assert.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
}

func TestLogin(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	user := seedUser(factory, "alice@example.com", "secret123", true)

	res, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "secret123",
	})

	require.NoError(t, err)
	assert.Equal(t, user.Id, res.User.Id)
	require.NotEmpty(t, res.Token)

	parsed, err := jwt.Parse(res.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte("test_secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.Id.String(), claims["user_id"])
}

func TestLoginUnknownUser(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	assert.Equal(t, "User not found", apperror.ClientMessage(err))
}

func TestLoginWrongPassword(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	seedUser(factory, "alice@example.com", "secret123", true)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	assert.Equal(t, "Invalid credentials", apperror.ClientMessage(err))
}

func TestLoginUnverifiedQueuesNewVerificationMail(t *testing.T) {
	factory := newFakeFactory()
	pub := &fakeMailPublisher{}
	svc := newTestAuthService(factory, &fakeMailer{}, pub)
	seedUser(factory, "alice@example.com", "secret123", false)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "secret123",
	})

	require.Error(t, err)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	assert.Equal(t, []string{"alice@example.com"}, pub.published)
	assert.Len(t, factory.store.verificationTokens, 1)
}

func TestForgotPasswordUnknownEmailSilent(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})

	require.NoError(t, svc.ForgotPassword(context.Background(), &dto.ForgotPasswordRequest{
		Email: "ghost@example.com",
	}))
	assert.Empty(t, factory.store.resetTokens)
}

func TestForgotPasswordCreatesToken(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	user := seedUser(factory, "alice@example.com", "secret123", true)

	require.NoError(t, svc.ForgotPassword(context.Background(), &dto.ForgotPasswordRequest{
		Email: "alice@example.com",
	}))

	require.Len(t, factory.store.resetTokens, 1)
	for _, tok := range factory.store.resetTokens {
		assert.Equal(t, user.Id, tok.UserId)
		assert.False(t, tok.Used)
	}
}

func TestResetPassword(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	user := seedUser(factory, "alice@example.com", "oldpass123", true)

	resetToken := &entity.PasswordResetToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     "reset-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	factory.store.resetTokens[resetToken.Id] = resetToken

	require.NoError(t, svc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{
		Token:       "reset-token",
		NewPassword: "newpass456",
	}))

	assert.True(t, resetToken.Used)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpass456")))

	// Replay with the same token fails.
	err := svc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{
		Token:       "reset-token",
		NewPassword: "thirdpass",
	})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestResetPasswordExpiredToken(t *testing.T) {
	factory := newFakeFactory()
	svc := newTestAuthService(factory, &fakeMailer{}, &fakeMailPublisher{})
	user := seedUser(factory, "alice@example.com", "oldpass123", true)

	resetToken := &entity.PasswordResetToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     "stale-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	factory.store.resetTokens[resetToken.Id] = resetToken

	err := svc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{
		Token:       "stale-token",
		NewPassword: "newpass456",
	})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("oldpass123")))
}
