package handlers

import (
	"strconv"

	"coupon-service/internal/models"
)

// CouponView выбирает форму документа купона.
type CouponView int

const (
	// CouponViewBasic - только атрибуты купона
	CouponViewBasic CouponView = iota
	// CouponViewWithCount - атрибуты и meta.use_count
	CouponViewWithCount
)

type couponAttributes struct {
	Name          string              `json:"name"`
	Code          string              `json:"code"`
	DiscountType  models.DiscountType `json:"discount_type"`
	DiscountValue float64             `json:"discount_value"`
	Status        models.CouponStatus `json:"status"`
}

type resource struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Attributes interface{} `json:"attributes"`
}

type couponMeta struct {
	UseCount int `json:"use_count"`
}

type document struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

func couponResource(c *models.Coupon) resource {
	return resource{
		ID:   strconv.FormatInt(c.ID, 10),
		Type: "coupon",
		Attributes: couponAttributes{
			Name:          c.Name,
			Code:          c.Code,
			DiscountType:  c.DiscountType,
			DiscountValue: c.DiscountValue,
			Status:        c.Status,
		},
	}
}

// serializeCoupon строит документ одного купона. useCount учитывается только в CouponViewWithCount.
func serializeCoupon(c *models.Coupon, view CouponView, useCount int) document {
	doc := document{Data: couponResource(c)}
	if view == CouponViewWithCount {
		doc.Meta = couponMeta{UseCount: useCount}
	}
	return doc
}

func serializeCoupons(coupons []*models.Coupon) document {
	data := make([]resource, 0, len(coupons))
	for _, c := range coupons {
		data = append(data, couponResource(c))
	}
	return document{Data: data}
}

type merchantAttributes struct {
	Name               string `json:"name"`
	CouponsCount       *int   `json:"coupons_count,omitempty"`
	InvoiceCouponCount *int   `json:"invoice_coupon_count,omitempty"`
}

func serializeMerchant(s *models.MerchantSummary) document {
	return document{Data: resource{
		ID:   strconv.FormatInt(s.Merchant.ID, 10),
		Type: "merchant",
		Attributes: merchantAttributes{
			Name:               s.Merchant.Name,
			CouponsCount:       s.CouponsCount,
			InvoiceCouponCount: s.InvoiceCouponCount,
		},
	}}
}
