package service

import (
	"context"
	"encoding/json"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/pkg/mailer"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IMailConsumerService interface {
	Consume(ctx context.Context) error
}

type mailConsumerService struct {
	pubSub       *gochannel.GoChannel
	topicName    string
	emailService mailer.IEmailService
	logger       logger.ILogger
}

func NewMailConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	emailService mailer.IEmailService,
	sysLogger logger.ILogger,
) IMailConsumerService {
	return &mailConsumerService{
		pubSub:       pubSub,
		topicName:    topicName,
		emailService: emailService,
		logger:       sysLogger,
	}
}

func (cs *mailConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *mailConsumerService) processMessage(msg *message.Message) {
	var payload dto.VerificationMailMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("mail-consumer", "failed to unmarshal message", map[string]interface{}{
			"error": err.Error(),
		})
		// Ack invalid messages to prevent infinite retry
		msg.Ack()
		return
	}

	if err := cs.emailService.SendVerificationLink(payload.Email, payload.Token); err != nil {
		cs.logger.Error("mail-consumer", "failed to send verification email", map[string]interface{}{
			"email": payload.Email,
			"error": err.Error(),
		})
		msg.Ack()
		return
	}

	cs.logger.Info("mail-consumer", "verification email sent", map[string]interface{}{
		"email": payload.Email,
	})
	msg.Ack()
}
