package models

// AccessLevel — уровень, которым определяется доступ к элементу.
type AccessLevel string

const (
	AccessFree       AccessLevel = "FREE"
	AccessSubscriber AccessLevel = "SUBSCRIBER"
	AccessPPV        AccessLevel = "PPV"
)

// Verdict — вычисляемый результат проверки доступа. Не сохраняется.
type Verdict struct {
	Locked       bool        `json:"locked"`
	AccessLevel  AccessLevel `json:"access_level"`
	HasPurchased bool        `json:"has_purchased"`
}

// LevelFor возвращает номинальный уровень доступа для уровня видимости.
func LevelFor(t Tier) AccessLevel {
	switch t {
	case TierPaid:
		return AccessPPV
	case TierSubscribers:
		return AccessSubscriber
	default:
		return AccessFree
	}
}

// CreatorSet хранит снимок авторов, на которых у пользователя есть активная подписка.
type CreatorSet map[string]struct{}

// NewCreatorSet строит множество из списка идентификаторов.
func NewCreatorSet(ids ...string) CreatorSet {
	s := make(CreatorSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has сообщает, входит ли автор в множество.
func (s CreatorSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs возвращает идентификаторы авторов.
func (s CreatorSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// PurchaseSet хранит снимок элементов, купленных пользователем (завершённые PPV и MESSAGE).
type PurchaseSet map[ContentRef]struct{}

// NewPurchaseSet строит множество из списка ссылок.
func NewPurchaseSet(refs ...ContentRef) PurchaseSet {
	s := make(PurchaseSet, len(refs))
	for _, ref := range refs {
		s[ref] = struct{}{}
	}
	return s
}

// Has сообщает, куплен ли элемент.
func (s PurchaseSet) Has(ref ContentRef) bool {
	_, ok := s[ref]
	return ok
}
