package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse - ответ с одной ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorsResponse - ответ со списком ошибок валидации
type ErrorsResponse struct {
	Errors []string `json:"errors"`
}

// writeJSONResponse отправляет JSON ответ
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse отправляет ответ с ошибкой
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

func writeErrorsResponse(w http.ResponseWriter, statusCode int, messages []string) {
	if messages == nil {
		messages = []string{}
	}
	writeJSONResponse(w, statusCode, ErrorsResponse{Errors: messages})
}

// pathID читает положительный числовой параметр пути chi.
// ok=false для отсутствующих и нечисловых значений: такие ресурсы не существуют.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryFlag сообщает, передан ли параметр запроса со значением true.
func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
