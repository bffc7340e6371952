package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/logger"
	"coupon-service/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует события купонов в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner
	saramaCfg.Net.DialTimeout = 3 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// publishEvent сериализует событие и отправляет его в топик.
// Ключ сообщения - merchant_id, чтобы события одного мерчанта шли по порядку.
func (p *Producer) publishEvent(topic, key string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.Type, err)
	}

	p.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

func newCouponEvent(eventType models.EventType, coupon *models.Coupon, oldStatus models.CouponStatus) models.Event {
	return models.Event{
		ID:   uuid.New(),
		Type: eventType,
		Data: models.CouponEventData{
			CouponID:   coupon.ID,
			MerchantID: coupon.MerchantID,
			Code:       coupon.Code,
			Status:     coupon.Status,
			OldStatus:  oldStatus,
		},
		Timestamp: time.Now().UTC(),
	}
}

// PublishCouponCreated публикует событие создания купона
func (p *Producer) PublishCouponCreated(coupon *models.Coupon) error {
	event := newCouponEvent(models.EventTypeCouponCreated, coupon, "")
	return p.publishEvent(p.topics.Coupons, strconv.FormatInt(coupon.MerchantID, 10), event)
}

// PublishCouponStatusChanged публикует событие активации или деактивации купона
func (p *Producer) PublishCouponStatusChanged(coupon *models.Coupon, oldStatus models.CouponStatus) error {
	eventType := models.EventTypeCouponDeactivated
	if coupon.IsActive() {
		eventType = models.EventTypeCouponActivated
	}
	event := newCouponEvent(eventType, coupon, oldStatus)
	return p.publishEvent(p.topics.Coupons, strconv.FormatInt(coupon.MerchantID, 10), event)
}
