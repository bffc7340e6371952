package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DiscountType описывает тип скидки купона.
type DiscountType string

const (
	DiscountTypePercentOff DiscountType = "percent_off"
	DiscountTypeDollarOff  DiscountType = "dollar_off"
)

// Valid сообщает, входит ли тип в допустимый набор.
func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentOff || t == DiscountTypeDollarOff
}

// CouponStatus описывает статус купона.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusInactive CouponStatus = "inactive"
)

// Valid сообщает, входит ли статус в допустимый набор.
func (s CouponStatus) Valid() bool {
	return s == CouponStatusActive || s == CouponStatusInactive
}

// ParseCouponStatus разбирает строковый статус; ok=false для значений вне набора.
func ParseCouponStatus(raw string) (CouponStatus, bool) {
	s := CouponStatus(raw)
	return s, s.Valid()
}

// Coupon представляет купон мерчанта.
type Coupon struct {
	ID            int64        `json:"id" db:"id"`
	MerchantID    int64        `json:"merchant_id" db:"merchant_id"`
	Name          string       `json:"name" db:"name"`
	Code          string       `json:"code" db:"code"`
	DiscountType  DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue float64      `json:"discount_value" db:"discount_value"`
	Status        CouponStatus `json:"status" db:"status"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// IsActive сообщает, активен ли купон.
func (c *Coupon) IsActive() bool {
	return c.Status == CouponStatusActive
}

// CouponDetail - купон вместе с количеством использований в счетах.
type CouponDetail struct {
	Coupon   *Coupon
	UseCount int
}

// CreateCouponRequest описывает запрос на создание купона.
// DiscountValue - указатель, чтобы отличать отсутствующее значение от нуля.
type CreateCouponRequest struct {
	Name          string       `json:"name"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue *float64     `json:"discount_value"`
	Status        CouponStatus `json:"status,omitempty"`
}

// UnmarshalJSON принимает discount_value числом или строкой ("10").
// Нечисловое значение оставляет поле пустым, его отклоняет валидатор.
func (r *CreateCouponRequest) UnmarshalJSON(data []byte) error {
	type plain CreateCouponRequest
	aux := struct {
		*plain
		DiscountValue json.RawMessage `json:"discount_value"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.DiscountValue = parseDiscountValue(aux.DiscountValue)
	return nil
}

func parseDiscountValue(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil
	}
	return &v
}

// UpdateCouponStatusRequest описывает запрос на смену статуса.
type UpdateCouponStatusRequest struct {
	Status string `json:"status"`
}

// Коды правил валидации купона.
const (
	ReasonFieldRequired        = "field_required"
	ReasonDuplicateCode        = "duplicate_code"
	ReasonInvalidDiscountType  = "invalid_discount_type"
	ReasonInvalidDiscountValue = "invalid_discount_value"
	ReasonInvalidStatus        = "invalid_status"
	ReasonActiveLimitExceeded  = "active_limit_exceeded"
)

var (
	// ErrDuplicateCode - код купона уже занят (уникален глобально).
	ErrDuplicateCode = errors.New("coupon code already taken")
	// ErrActiveLimitExceeded - у мерчанта уже максимум активных купонов.
	ErrActiveLimitExceeded = errors.New("active coupon limit exceeded")
)

// FieldError - одно нарушенное правило валидации.
type FieldError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ValidationContext несет данные, которые валидатор не может вычислить сам.
// ActiveCount считается без строки самого купона.
type ValidationContext struct {
	ActiveCount int
	ActiveLimit int
	CodeTaken   bool
}

// Validate проверяет купон и возвращает все нарушения в фиксированном порядке.
// Пустой результат означает, что купон валиден.
func (c *Coupon) Validate(vc ValidationContext) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Reason: ReasonFieldRequired, Message: "Name can't be blank"})
	}
	if strings.TrimSpace(c.Code) == "" {
		errs = append(errs, FieldError{Field: "code", Reason: ReasonFieldRequired, Message: "Code can't be blank"})
	} else if vc.CodeTaken {
		errs = append(errs, FieldError{Field: "code", Reason: ReasonDuplicateCode, Message: "Code has already been taken"})
	}
	if !c.DiscountType.Valid() {
		errs = append(errs, FieldError{Field: "discount_type", Reason: ReasonInvalidDiscountType, Message: "Discount type is not included in the list"})
	}
	if !(c.DiscountValue > 0) {
		errs = append(errs, FieldError{Field: "discount_value", Reason: ReasonInvalidDiscountValue, Message: "Discount value must be greater than 0"})
	}
	if !c.Status.Valid() {
		errs = append(errs, FieldError{Field: "status", Reason: ReasonInvalidStatus, Message: "Status is not included in the list"})
	}
	if c.Status == CouponStatusActive && vc.ActiveLimit > 0 && vc.ActiveCount >= vc.ActiveLimit {
		errs = append(errs, ActiveLimitError(vc.ActiveLimit))
	}

	return errs
}

// ActiveLimitError формирует нарушение лимита активных купонов.
func ActiveLimitError(limit int) FieldError {
	return FieldError{
		Field:   "status",
		Reason:  ReasonActiveLimitExceeded,
		Message: fmt.Sprintf("Status cannot be set to active. Merchant already has %d active coupons.", limit),
	}
}

// ValidationError собирает нарушения валидации в одну ошибку.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages(), "; ")
}

// Messages возвращает человекочитаемые сообщения нарушений.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Message)
	}
	return out
}

// Has сообщает, есть ли среди нарушений правило с указанным кодом.
func (e *ValidationError) Has(reason string) bool {
	for _, f := range e.Fields {
		if f.Reason == reason {
			return true
		}
	}
	return false
}

// Is позволяет сопоставлять ошибку с ErrDuplicateCode и ErrActiveLimitExceeded через errors.Is.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrDuplicateCode:
		return e.Has(ReasonDuplicateCode)
	case ErrActiveLimitExceeded:
		return e.Has(ReasonActiveLimitExceeded)
	}
	return false
}
