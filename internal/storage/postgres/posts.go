package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// buildPostFilter собирает условие WHERE и аргументы для выборки постов.
func buildPostFilter(f models.PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.CreatorIDs != nil {
		args = append(args, strings.Join(f.CreatorIDs, ","))
		conds = append(conds, fmt.Sprintf("p.creator_id = ANY(string_to_array($%d, ',')::uuid[])", len(args)))
	}
	if f.Tiers != nil {
		tiers := make([]string, 0, len(f.Tiers))
		for _, t := range f.Tiers {
			tiers = append(tiers, string(t))
		}
		args = append(args, strings.Join(tiers, ","))
		conds = append(conds, fmt.Sprintf("p.visibility = ANY(string_to_array($%d, ','))", len(args)))
	}
	if f.ExcludePaid {
		conds = append(conds, "p.is_paid = false AND p.visibility <> 'PAID'")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPosts возвращает страницу постов по фильтру, от новых к старым, и общее
// число кандидатов. Подсчёт и выборка выполняются в одном снимке данных,
// поэтому total всегда соответствует набору, из которого взята страница.
func (s *Storage) ListPosts(ctx context.Context, f models.PostFilter) ([]models.ContentItem, int, error) {
	const op = "storage.ListPosts"
	if err := checkCtx(ctx, op); err != nil {
		return nil, 0, err
	}
	if f.CreatorIDs != nil && len(f.CreatorIDs) == 0 {
		return []models.ContentItem{}, 0, nil
	}

	where, args := buildPostFilter(f)

	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, wrap(op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, wrap(op, err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	query := `SELECT p.id, p.creator_id, c.user_id, p.title, p.body, p.media_url,
			      p.is_paid, p.price, p.visibility, p.created_at
			  FROM posts p
			  JOIN creators c ON c.id = p.creator_id` + where + fmt.Sprintf(`
			  ORDER BY p.created_at DESC, p.id DESC
			  LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := tx.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	items := make([]models.ContentItem, 0, f.Limit)
	for rows.Next() {
		item := models.ContentItem{Ref: models.ContentRef{Type: models.ContentPost}}
		if err := rows.Scan(&item.Ref.ID, &item.CreatorID, &item.OwnerID, &item.Title, &item.Body,
			&item.MediaURL, &item.IsPaid, &item.Price, &item.Visibility, &item.CreatedAt); err != nil {
			return nil, 0, wrap(op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrap(op, err)
	}
	if err := rows.Close(); err != nil {
		return nil, 0, wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, wrap(op, err)
	}
	return items, total, nil
}
