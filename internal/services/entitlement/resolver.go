// Package entitlement решает, открыт ли элемент контента пользователю.
package entitlement

import "github.com/magabrotheeeer/paywall-ledger/internal/models"

// Resolve вычисляет вердикт доступа. userID пуст для анонимного запроса.
// Правила проверяются по порядку, срабатывает первое подходящее:
// владелец видит всё; платный элемент открывает только его покупка;
// элемент для подписчиков открывает активная подписка; остальное бесплатно.
func Resolve(userID string, item models.ContentItem, subs models.CreatorSet, purchases models.PurchaseSet) models.Verdict {
	tier := item.EffectiveTier()

	if userID != "" && item.OwnerID == userID {
		return models.Verdict{
			Locked:       false,
			AccessLevel:  models.LevelFor(tier),
			HasPurchased: true,
		}
	}

	switch tier {
	case models.TierPaid:
		purchased := userID != "" && purchases.Has(item.Ref)
		return models.Verdict{
			Locked:       !purchased,
			AccessLevel:  models.AccessPPV,
			HasPurchased: purchased,
		}
	case models.TierSubscribers:
		return models.Verdict{
			Locked:      userID == "" || !subs.Has(item.CreatorID),
			AccessLevel: models.AccessSubscriber,
		}
	default:
		return models.Verdict{AccessLevel: models.AccessFree}
	}
}

// Apply возвращает элемент с вердиктом. Закрытый элемент отдаётся без полезной нагрузки.
func Apply(userID string, item models.ContentItem, subs models.CreatorSet, purchases models.PurchaseSet) models.FeedItem {
	v := Resolve(userID, item, subs, purchases)
	if v.Locked {
		item = item.Redacted()
	}
	return models.FeedItem{Item: item, Verdict: v}
}
