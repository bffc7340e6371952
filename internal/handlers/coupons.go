package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"coupon-service/internal/logger"
	"coupon-service/internal/models"
)

// CouponHandler обрабатывает запросы к купонам мерчанта
type CouponHandler struct {
	service CouponService
	log     *logger.Logger
}

// NewCouponHandler создает новый обработчик купонов
func NewCouponHandler(service CouponService, log *logger.Logger) *CouponHandler {
	return &CouponHandler{service: service, log: log}
}

type createCouponBody struct {
	Coupon *models.CreateCouponRequest `json:"coupon"`
}

// List возвращает купоны мерчанта, опционально отфильтрованные по ?status=
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := pathID(r, "merchantId")
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "merchant not found")
		return
	}

	coupons, err := h.service.List(r.Context(), merchantID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, serializeCoupons(coupons))
}

// Get возвращает купон с количеством использований
func (h *CouponHandler) Get(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := pathID(r, "merchantId")
	couponID, ok2 := pathID(r, "id")
	if !ok || !ok2 {
		writeErrorResponse(w, http.StatusNotFound, "coupon not found")
		return
	}

	detail, err := h.service.Detail(r.Context(), merchantID, couponID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, serializeCoupon(detail.Coupon, CouponViewWithCount, detail.UseCount))
}

// Create создает купон из тела {"coupon": {...}}
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := pathID(r, "merchantId")
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "merchant not found")
		return
	}

	var body createCouponBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Coupon == nil {
		writeErrorResponse(w, http.StatusBadRequest, "param is missing or the value is empty: coupon")
		return
	}

	coupon, err := h.service.Create(r.Context(), merchantID, body.Coupon)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	writeJSONResponse(w, http.StatusCreated, serializeCoupon(coupon, CouponViewBasic, 0))
}

// UpdateStatus активирует или деактивирует купон.
// Статус читается из JSON {"status": "..."} либо из параметра формы/запроса status.
func (h *CouponHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := pathID(r, "merchantId")
	couponID, ok2 := pathID(r, "id")
	if !ok || !ok2 {
		writeErrorResponse(w, http.StatusNotFound, "coupon not found")
		return
	}

	status, err := readStatus(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	coupon, err := h.service.UpdateStatus(r.Context(), merchantID, couponID, status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update coupon status")
		return
	}

	writeJSONResponse(w, http.StatusOK, serializeCoupon(coupon, CouponViewBasic, 0))
}

func readStatus(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req models.UpdateCouponStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if req.Status != "" {
			return req.Status, nil
		}
		return r.URL.Query().Get("status"), nil
	}
	return r.FormValue("status"), nil
}
