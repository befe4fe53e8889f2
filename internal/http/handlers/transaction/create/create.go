// Package create обрабатывает создание транзакций покупки.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/response"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Service создаёт транзакцию pending.
type Service interface {
	CreateTransaction(ctx context.Context, req models.PurchaseRequest) (string, error)
}

// Result — ответ на создание транзакции.
type Result struct {
	TransactionID string        `json:"transaction_id"`
	Status        models.Status `json:"status" example:"pending"`
}

// Handler обрабатывает POST /transactions.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать транзакцию
// @Description Создаёт подписку, чаевые или покупку поста/сообщения в состоянии pending
// @Tags Transactions
// @Accept  json
// @Produce  json
// @Param request body models.DummyPurchase true "Параметры покупки"
// @Success 201 {object} response.Response{data=Result}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Сообщение адресовано другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Автор или контент не найден"
// @Failure 409 {object} response.ErrorResponse "Уже подписан или уже куплено"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка"
// @Router /transactions [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transaction.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserIDFrom(r.Context())
	if userID == "" {
		log.Error("user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.DummyPurchase
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	id, err := h.service.CreateTransaction(r.Context(), models.PurchaseRequest{
		Kind:     models.Kind(req.Kind),
		PayerID:  userID,
		TargetID: req.TargetID,
		Amount:   req.Amount,
		Renew:    req.Renew,
	})
	if err != nil {
		code := response.RenderError(w, r, err)
		if code == http.StatusInternalServerError {
			log.Error("failed to create transaction", sl.Err(err))
		} else {
			log.Warn("transaction rejected", slog.String("kind", req.Kind), sl.Err(err))
		}
		return
	}

	log.Info("transaction created", slog.String("transaction_id", id), slog.String("kind", req.Kind))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(Result{TransactionID: id, Status: models.StatusPending}))
}
