package handlers

import (
	"net/http"

	"coupon-service/internal/apperror"
	"coupon-service/internal/logger"
)

func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case apperror.Is(err, apperror.KindValidation):
		writeErrorsResponse(w, http.StatusUnprocessableEntity, apperror.DetailsOf(err))
	case apperror.Is(err, apperror.KindUnprocessable):
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case apperror.Is(err, apperror.KindConflict):
		writeErrorResponse(w, http.StatusConflict, err.Error())
	default:
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
	}
}
