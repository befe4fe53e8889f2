// Package models содержит доменные структуры платформы платного контента:
// транзакции, подписки, элементы контента, вердикты доступа и ленты,
// а также таксономию доменных ошибок.
package models

import "time"

// Tier — уровень видимости элемента контента.
type Tier string

const (
	// TierPublic — контент доступен всем.
	TierPublic Tier = "PUBLIC"
	// TierSubscribers — контент доступен активным подписчикам автора.
	TierSubscribers Tier = "SUBSCRIBERS"
	// TierPaid — контент доступен только после отдельной покупки.
	TierPaid Tier = "PAID"
)

// ContentType различает посты и сообщения в ссылках на контент.
type ContentType string

const (
	// ContentPost обозначает пост автора.
	ContentPost ContentType = "post"
	// ContentMessage обозначает личное сообщение.
	ContentMessage ContentType = "message"
)

// ContentRef — типизированная ссылка на элемент контента.
// Тип входит в ключ, поэтому id поста и id сообщения не пересекаются.
type ContentRef struct {
	Type ContentType `json:"type"`
	ID   string      `json:"id"`
}

// PostRef возвращает ссылку на пост.
func PostRef(id string) ContentRef { return ContentRef{Type: ContentPost, ID: id} }

// MessageRef возвращает ссылку на сообщение.
func MessageRef(id string) ContentRef { return ContentRef{Type: ContentMessage, ID: id} }

// Creator описывает аккаунт автора.
type Creator struct {
	ID              string // Идентификатор аккаунта автора
	UserID          string // Пользователь, которому принадлежит аккаунт
	SubscriptionFee int64  // Текущая стоимость подписки в минимальных единицах валюты
}

// ContentItem — пост или сообщение вместе с полями, влияющими на доступ.
type ContentItem struct {
	Ref        ContentRef `json:"ref"`
	CreatorID  string     `json:"creator_id"`
	OwnerID    string     `json:"owner_id"`              // Пользователь-владелец аккаунта автора (или отправитель сообщения)
	ReceiverID string     `json:"receiver_id,omitempty"` // Только для сообщений
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body,omitempty"`
	MediaURL   string     `json:"media_url,omitempty"`
	IsPaid     bool       `json:"is_paid"`
	Price      int64      `json:"price"`
	Visibility Tier       `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Paid сообщает, требует ли элемент отдельной покупки.
// Сохранённый уровень PAID без флага isPaid тоже считается платным.
func (c ContentItem) Paid() bool {
	return c.IsPaid || c.Visibility == TierPaid
}

// EffectiveTier возвращает фактический уровень видимости элемента.
func (c ContentItem) EffectiveTier() Tier {
	if c.Paid() {
		return TierPaid
	}
	if c.Visibility == TierSubscribers {
		return TierSubscribers
	}
	return TierPublic
}

// Redacted возвращает копию элемента без полезной нагрузки.
func (c ContentItem) Redacted() ContentItem {
	c.Body = ""
	c.MediaURL = ""
	return c
}
