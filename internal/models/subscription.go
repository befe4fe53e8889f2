package models

import "time"

// SubscriptionPeriod — фиксированный срок, на который продлевается подписка.
const SubscriptionPeriod = 30 * 24 * time.Hour

// Subscription — право доступа пользователя к контенту автора.
// На пару (UserID, CreatorID) существует не более одной записи.
type Subscription struct {
	UserID    string    `json:"user_id"`
	CreatorID string    `json:"creator_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt сообщает, активна ли подписка в момент now.
// Срок должен быть строго в будущем.
func (s Subscription) ActiveAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// ExtendExpiry вычисляет новый срок: max(now, current) + period.
// Результат не зависит от порядка применения параллельных продлений.
func ExtendExpiry(current, now time.Time, period time.Duration) time.Time {
	base := current
	if now.After(base) {
		base = now
	}
	return base.Add(period)
}
