package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события
type EventType string

const (
	EventTypeCouponCreated     EventType = "coupon.created"
	EventTypeCouponActivated   EventType = "coupon.activated"
	EventTypeCouponDeactivated EventType = "coupon.deactivated"
)

// Event представляет событие, публикуемое в Kafka
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// CouponEventData - полезная нагрузка событий купонов
type CouponEventData struct {
	CouponID   int64        `json:"coupon_id"`
	MerchantID int64        `json:"merchant_id"`
	Code       string       `json:"code"`
	Status     CouponStatus `json:"status"`
	OldStatus  CouponStatus `json:"old_status,omitempty"`
}
