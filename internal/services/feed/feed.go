// Package feed собирает персональную ленту и страницу автора.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/entitlement"
)

// Posts выбирает посты по фильтру. Страница и total читаются из одного снимка.
type Posts interface {
	ListPosts(ctx context.Context, f models.PostFilter) ([]models.ContentItem, int, error)
	GetCreator(ctx context.Context, id string) (*models.Creator, error)
}

// Snapshotter возвращает свежие снимки подписок и покупок пользователя.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID string, items []models.ContentItem) (models.CreatorSet, models.PurchaseSet, error)
}

// Composer собирает листинги контента.
type Composer struct {
	posts     Posts
	snapshots Snapshotter
	log       *slog.Logger
}

// New создаёт Composer.
func New(posts Posts, snapshots Snapshotter, log *slog.Logger) *Composer {
	return &Composer{
		posts:     posts,
		snapshots: snapshots,
		log:       log,
	}
}

// ComposeFeed собирает персональную ленту. При наличии активных подписок
// в неё попадают посты этих авторов, иначе публичные и подписочные посты
// всей платформы. Платные посты в ленту не попадают.
func (c *Composer) ComposeFeed(ctx context.Context, userID string, page, limit int) (*models.FeedPage, error) {
	const op = "feed.ComposeFeed"
	page, limit = models.NormalizePage(page, limit)

	subs, _, err := c.snapshots.Snapshot(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	filter := models.PostFilter{
		ExcludePaid: true,
		Limit:       limit,
		Offset:      (page - 1) * limit,
	}
	if len(subs) > 0 {
		filter.CreatorIDs = subs.IDs()
	} else {
		filter.Tiers = []models.Tier{models.TierPublic, models.TierSubscribers}
	}

	posts, total, err := c.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.FeedItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, entitlement.Apply(userID, p, subs, models.NewPurchaseSet()))
	}

	c.log.Debug("feed composed",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.Bool("discovery", len(subs) == 0),
		slog.Int("total", total))
	return newPage(items, page, limit, total), nil
}

// ComposeCreatorListing собирает все посты автора с вердиктом доступа для каждого.
// userID пуст для анонимного запроса.
func (c *Composer) ComposeCreatorListing(ctx context.Context, creatorID, userID string, page, limit int) (*models.FeedPage, error) {
	const op = "feed.ComposeCreatorListing"
	page, limit = models.NormalizePage(page, limit)

	if _, err := c.posts.GetCreator(ctx, creatorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	posts, total, err := c.posts.ListPosts(ctx, models.PostFilter{
		CreatorIDs: []string{creatorID},
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	subs, purchases, err := c.snapshots.Snapshot(ctx, userID, posts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.FeedItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, entitlement.Apply(userID, p, subs, purchases))
	}
	return newPage(items, page, limit, total), nil
}

func newPage(items []models.FeedItem, page, limit, total int) *models.FeedPage {
	return &models.FeedPage{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: models.TotalPages(total, limit),
	}
}
