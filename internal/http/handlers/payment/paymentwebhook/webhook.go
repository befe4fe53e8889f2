// Package paymentwebhook принимает подтверждения платежей от шлюза.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/response"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// SignatureHeader — заголовок с подписью тела запроса.
const SignatureHeader = "X-Api-Signature"

// maxBodySize ограничивает размер тела вебхука.
const maxBodySize = 64 << 10

// Processor применяет подтверждение.
type Processor interface {
	Validate(c models.Confirmation) error
	Process(ctx context.Context, c models.Confirmation) (*models.Settlement, error)
}

// Handler обрабатывает POST /payments/webhook.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	processor     Processor
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, processor Processor, secret string) *Handler {
	return &Handler{
		log:           log,
		processor:     processor,
		webhookSecret: secret,
	}
}

// Sign возвращает подпись тела: base64(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(h.webhookSecret, body)), []byte(signature))
}

// ServeHTTP godoc
// @Summary Вебхук подтверждения платежа
// @Description Принимает итоговый статус транзакции. Повторная доставка безопасна.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param X-Api-Signature header string true "base64(HMAC-SHA256(secret, body))"
// @Param request body models.Confirmation true "Подтверждение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Транзакция не найдена"
// @Failure 409 {object} response.ErrorResponse "Противоречит записанному исходу"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(SignatureHeader)
	if h.webhookSecret == "" || signature == "" || !h.verifySignature(body, signature) {
		log.Warn("invalid or missing webhook signature")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var c models.Confirmation
	if err := json.Unmarshal(body, &c); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.processor.Validate(c); err != nil {
		log.Warn("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		render.Status(r, http.StatusUnprocessableEntity)
		if errors.As(err, &verrs) {
			render.JSON(w, r, response.ValidationError(verrs))
		} else {
			render.JSON(w, r, response.Error(err.Error()))
		}
		return
	}

	res, err := h.processor.Process(r.Context(), c)
	if err != nil {
		code := response.RenderError(w, r, err)
		if code == http.StatusInternalServerError {
			log.Error("failed to process webhook event", sl.Err(err))
		} else {
			log.Warn("webhook event rejected", slog.String("transaction_id", c.TransactionID), sl.Err(err))
		}
		return
	}

	log.Info("webhook processed",
		slog.String("event_id", c.EventID),
		slog.String("transaction_id", c.TransactionID),
		slog.Bool("applied", res.Applied))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"transaction_id": c.TransactionID,
		"applied":        res.Applied,
	}))
}
