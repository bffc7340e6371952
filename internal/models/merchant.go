package models

// Merchant - владелец купонов. Сервис только читает мерчантов.
type Merchant struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// MerchantView выбирает необязательные счетчики в ответе по мерчанту.
type MerchantView string

const (
	MerchantViewCouponCount        MerchantView = "coupon_count"
	MerchantViewInvoiceCouponCount MerchantView = "invoice_coupon_count"
)

// MerchantSummary - мерчант с запрошенными счетчиками; nil означает "не запрашивался".
type MerchantSummary struct {
	Merchant           *Merchant
	CouponsCount       *int
	InvoiceCouponCount *int
}
