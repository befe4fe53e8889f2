package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/confirmation"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/entitlement"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/feed"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/ledger"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/registry"
)

// Store — хранилище, общее для PostgreSQL и памяти процесса.
type Store interface {
	ledger.Repository
	registry.Repository
	ListPurchasedRefs(ctx context.Context, payerID string, refs []models.ContentRef) (models.PurchaseSet, error)
	ListPosts(ctx context.Context, f models.PostFilter) ([]models.ContentItem, int, error)
}

// Services содержит собранные доменные сервисы.
type Services struct {
	Ledger       *ledger.Service
	Registry     *registry.Registry
	Entitlement  *entitlement.Service
	Feed         *feed.Composer
	Confirmation *confirmation.Processor
}

// Deps содержит внешние зависимости сервисов. Publisher, Metrics и Dedupe необязательны.
type Deps struct {
	Store     Store
	Period    time.Duration
	Clock     func() time.Time
	Publisher ledger.Publisher
	Metrics   ledger.Recorder
	Dedupe    confirmation.Deduper
}

// NewServices связывает сервисы между собой.
func NewServices(d Deps, logger *slog.Logger) *Services {
	subs := registry.New(d.Store, d.Period, d.Clock, logger)
	ledgerService := ledger.New(d.Store, subs, d.Publisher, d.Metrics, uuid.NewString, logger)
	entitlementService := entitlement.New(d.Store, d.Store, subs, logger)

	return &Services{
		Ledger:       ledgerService,
		Registry:     subs,
		Entitlement:  entitlementService,
		Feed:         feed.New(d.Store, entitlementService, logger),
		Confirmation: confirmation.New(ledgerService, d.Dedupe, logger),
	}
}
