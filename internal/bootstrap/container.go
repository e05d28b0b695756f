package bootstrap

import (
	"log"
	"time"

	"docchat-be/internal/config"
	"docchat-be/internal/controller"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/pkg/mailer"
	"docchat-be/internal/repository/memory"
	"docchat-be/internal/repository/unitofwork"
	"docchat-be/internal/service"
	"docchat-be/pkg/gateway"

	pktNats "docchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const verificationMailTopic = "auth.verification-mail"

type Container struct {
	// Controllers
	AuthController controller.IAuthController
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	MailConsumer service.IMailConsumerService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	publisherService := service.NewPublisherService(verificationMailTopic, pubSub)
	mailConsumer := service.NewMailConsumerService(pubSub, verificationMailTopic, emailService, sysLogger)

	// 2.5 Infrastructure
	// NATS is optional; a nil publisher disables audit events.
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}
	}

	answerGateway := gateway.NewClient(
		cfg.Gateway.BaseURL,
		time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second,
	)

	listingCache := memory.NewListingCache()

	// 3. Services
	authService := service.NewAuthService(
		uowFactory,
		emailService,
		publisherService,
		natsPub,
		sysLogger,
		cfg.JWT.Secret,
		cfg.JWT.ExpiryHours,
	)
	chatService := service.NewChatService(
		uowFactory,
		answerGateway,
		listingCache,
		natsPub,
		sysLogger,
	)

	// 4. Controllers
	return &Container{
		AuthController: controller.NewAuthController(authService),
		ChatController: controller.NewChatController(chatService),
		MailConsumer:   mailConsumer,
		Logger:         sysLogger,
	}
}
