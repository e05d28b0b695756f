package service

import (
	"context"
	"encoding/json"

	"docchat-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IPublisherService interface {
	PublishVerificationMail(ctx context.Context, email string, token string) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (p *publisherService) PublishVerificationMail(ctx context.Context, email string, token string) error {
	payload := dto.VerificationMailMessage{
		Email: email,
		Token: token,
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payloadJson)
	return p.pubSub.Publish(p.topicName, msg)
}
