package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Fixtures содержит начальные данные для хранилища в памяти.
type Fixtures struct {
	Creators []CreatorFixture `yaml:"creators"`
	Posts    []PostFixture    `yaml:"posts"`
	Messages []MessageFixture `yaml:"messages"`
}

// CreatorFixture описывает аккаунт автора.
type CreatorFixture struct {
	ID              string `yaml:"id"`
	UserID          string `yaml:"user_id"`
	SubscriptionFee int64  `yaml:"subscription_fee"`
}

// PostFixture описывает пост.
type PostFixture struct {
	ID         string    `yaml:"id"`
	CreatorID  string    `yaml:"creator_id"`
	Title      string    `yaml:"title"`
	Body       string    `yaml:"body"`
	MediaURL   string    `yaml:"media_url"`
	IsPaid     bool      `yaml:"is_paid"`
	Price      int64     `yaml:"price"`
	Visibility string    `yaml:"visibility"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// MessageFixture описывает личное сообщение.
type MessageFixture struct {
	ID         string    `yaml:"id"`
	CreatorID  string    `yaml:"creator_id"`
	SenderID   string    `yaml:"sender_id"`
	ReceiverID string    `yaml:"receiver_id"`
	Body       string    `yaml:"body"`
	MediaURL   string    `yaml:"media_url"`
	IsPaid     bool      `yaml:"is_paid"`
	Price      int64     `yaml:"price"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// LoadFixtures читает файл начальных данных path.
func LoadFixtures(path string) (*Fixtures, error) {
	const op = "memory.LoadFixtures"
	var f Fixtures
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &f, nil
}

// Seed добавляет в хранилище данные из f. Авторы добавляются первыми,
// чтобы посты получили владельца.
func (s *Store) Seed(f *Fixtures) error {
	const op = "memory.Seed"
	for _, c := range f.Creators {
		if c.ID == "" || c.UserID == "" {
			return fmt.Errorf("%s: creator requires id and user_id", op)
		}
		s.AddCreator(models.Creator{ID: c.ID, UserID: c.UserID, SubscriptionFee: c.SubscriptionFee})
	}
	for _, p := range f.Posts {
		if _, err := s.GetCreator(context.Background(), p.CreatorID); err != nil {
			return fmt.Errorf("%s: post %s: unknown creator %s", op, p.ID, p.CreatorID)
		}
		s.AddPost(models.ContentItem{
			Ref:        models.PostRef(p.ID),
			CreatorID:  p.CreatorID,
			Title:      p.Title,
			Body:       p.Body,
			MediaURL:   p.MediaURL,
			IsPaid:     p.IsPaid,
			Price:      p.Price,
			Visibility: models.Tier(p.Visibility),
			CreatedAt:  p.CreatedAt,
		})
	}
	for _, m := range f.Messages {
		s.AddMessage(models.ContentItem{
			Ref:        models.MessageRef(m.ID),
			CreatorID:  m.CreatorID,
			OwnerID:    m.SenderID,
			ReceiverID: m.ReceiverID,
			Body:       m.Body,
			MediaURL:   m.MediaURL,
			IsPaid:     m.IsPaid,
			Price:      m.Price,
			CreatedAt:  m.CreatedAt,
		})
	}
	return nil
}
