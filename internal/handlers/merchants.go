package handlers

import (
	"net/http"

	"coupon-service/internal/logger"
	"coupon-service/internal/models"
)

// MerchantHandler отдает сводку по мерчанту
type MerchantHandler struct {
	service MerchantService
	log     *logger.Logger
}

// NewMerchantHandler создает новый обработчик мерчантов
func NewMerchantHandler(service MerchantService, log *logger.Logger) *MerchantHandler {
	return &MerchantHandler{service: service, log: log}
}

// Get возвращает мерчанта; ?coupon_count=true и ?invoice_coupon_count=true добавляют счетчики
func (h *MerchantHandler) Get(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := pathID(r, "merchantId")
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "merchant not found")
		return
	}

	var views []models.MerchantView
	if queryFlag(r, "coupon_count") {
		views = append(views, models.MerchantViewCouponCount)
	}
	if queryFlag(r, "invoice_coupon_count") {
		views = append(views, models.MerchantViewInvoiceCouponCount)
	}

	summary, err := h.service.Summary(r.Context(), merchantID, views...)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get merchant")
		return
	}

	writeJSONResponse(w, http.StatusOK, serializeMerchant(summary))
}
