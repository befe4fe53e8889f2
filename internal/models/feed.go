package models

const (
	// DefaultPageLimit — размер страницы по умолчанию.
	DefaultPageLimit = 10
	// MaxPageLimit — максимальный размер страницы.
	MaxPageLimit = 100
)

// PostFilter описывает набор кандидатов для выборки постов.
type PostFilter struct {
	CreatorIDs  []string // nil: без ограничения по авторам
	Tiers       []Tier   // nil: любые уровни
	ExcludePaid bool
	Limit       int
	Offset      int
}

// FeedItem — элемент ленты с вердиктом доступа.
type FeedItem struct {
	Item    ContentItem `json:"item"`
	Verdict Verdict     `json:"verdict"`
}

// FeedPage — страница ленты.
type FeedPage struct {
	Items      []FeedItem `json:"items"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
}

// NormalizePage приводит номер страницы и лимит к допустимым значениям.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// TotalPages считает число страниц для total элементов.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
