package models

import "time"

// Kind задаёт вид денежной операции.
type Kind string

const (
	KindSubscription Kind = "SUBSCRIPTION"
	KindTip          Kind = "TIP"
	KindPPV          Kind = "PPV"
	KindMessage      Kind = "MESSAGE"
)

// Valid сообщает, известен ли вид операции.
func (k Kind) Valid() bool {
	switch k {
	case KindSubscription, KindTip, KindPPV, KindMessage:
		return true
	}
	return false
}

// Unlocks сообщает, открывает ли операция доступ к конкретному элементу контента.
func (k Kind) Unlocks() bool {
	return k == KindPPV || k == KindMessage
}

// Status — состояние транзакции. pending переходит ровно один раз
// в completed или failed, после чего транзакция неизменяема.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal сообщает, является ли состояние конечным.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction — запись реестра операций.
type Transaction struct {
	ID         string      `json:"id"`
	PayerID    string      `json:"payer_id"`
	CreatorID  *string     `json:"creator_id,omitempty"`
	Amount     int64       `json:"amount"` // В минимальных единицах валюты
	Kind       Kind        `json:"kind"`
	Status     Status      `json:"status"`
	Renewal    bool        `json:"renewal,omitempty"`
	ContentRef *ContentRef `json:"content_ref,omitempty"` // Обязательна для PPV и MESSAGE
	CreatedAt  time.Time   `json:"created_at"`
	SettledAt  *time.Time  `json:"settled_at,omitempty"`
}

// PurchaseRequest описывает запрос на создание транзакции.
type PurchaseRequest struct {
	Kind     Kind
	PayerID  string
	TargetID string // Автор для SUBSCRIPTION и TIP, пост для PPV, сообщение для MESSAGE
	Amount   int64  // Только для TIP
	Renew    bool   // Продление активной подписки
}

// DummyPurchase используется для приёма запроса на покупку из JSON.
type DummyPurchase struct {
	Kind     string `json:"kind" validate:"required,oneof=SUBSCRIPTION TIP PPV MESSAGE"`
	TargetID string `json:"target_id" validate:"required"`
	Amount   int64  `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Renew    bool   `json:"renew,omitempty"`
}

// Settlement — результат применения подтверждения к транзакции.
type Settlement struct {
	Transaction Transaction
	Applied     bool       // false, если транзакция уже была в конечном состоянии
	ExpiresAt   *time.Time // Новый срок подписки, если подтверждение её продлило
}

// Event описывает событие жизненного цикла транзакции для внешних получателей.
type Event struct {
	Type        string      `json:"type"`
	Transaction Transaction `json:"transaction"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// Confirmation — подтверждение от платёжного шлюза.
type Confirmation struct {
	EventID       string `json:"event_id"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=completed failed"`
}
