// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "gte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// ErrorStatus сопоставляет доменную ошибку HTTP-статусу и тексту для клиента.
// Неизвестные ошибки скрываются за "internal error".
func ErrorStatus(err error) (int, string) {
	var target error
	for _, e := range []error{
		models.ErrInvalidAmount,
		models.ErrNotPurchasable,
		models.ErrSelfTarget,
		models.ErrInvalidKind,
		models.ErrInvalidStatus,
		models.ErrAlreadySubscribed,
		models.ErrAlreadyPurchased,
		models.ErrConflictingSettlement,
		models.ErrNotFound,
		models.ErrForbidden,
	} {
		if errors.Is(err, e) {
			target = e
			break
		}
	}

	switch {
	case target == nil:
		return http.StatusInternalServerError, "internal error"
	case models.IsValidation(target):
		return http.StatusUnprocessableEntity, target.Error()
	case models.IsConflict(target):
		return http.StatusConflict, target.Error()
	case target == models.ErrNotFound:
		return http.StatusNotFound, target.Error()
	default:
		return http.StatusForbidden, target.Error()
	}
}

// RenderError пишет ответ с ошибкой err и статусом из ErrorStatus. Возвращает статус.
func RenderError(w http.ResponseWriter, r *http.Request, err error) int {
	code, msg := ErrorStatus(err)
	render.Status(r, code)
	render.JSON(w, r, Error(msg))
	return code
}
