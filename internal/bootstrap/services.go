// Package bootstrap wires the finance services shared by cmd/api and
// cmd/finance-cli.
package bootstrap

import (
	"fmt"

	"github.com/angelmondragon/ptm-finance-backend/internal/cashbalance"
	"github.com/angelmondragon/ptm-finance-backend/internal/dues"
	"github.com/angelmondragon/ptm-finance-backend/internal/duesimport"
	"github.com/angelmondragon/ptm-finance-backend/pkg/config"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db"
	"github.com/angelmondragon/ptm-finance-backend/pkg/identity"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/members"
	"github.com/angelmondragon/ptm-finance-backend/pkg/metrics"
	"github.com/angelmondragon/ptm-finance-backend/pkg/upstream"
)

// Params groups what Build needs. Files and Metrics may be nil.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Files   dues.FileRemover
	Metrics *metrics.Finance
}

// Services is the assembled domain layer.
type Services struct {
	CashBalance cashbalance.Service
	Dues        dues.Service
	DuesQuery   dues.QueryService
	DuesImport  duesimport.Service
	Members     *members.Client
	Identity    *identity.Client
}

func Build(p Params) (*Services, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	cfg := p.Config

	upstreamOpts := []upstream.Option{
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithCookieName(cfg.JWT.CookieName),
	}
	directory, err := members.NewClient(cfg.Upstream.SettingURL, upstreamOpts, members.WithBulkConcurrency(cfg.Upstream.BulkConcurrency))
	if err != nil {
		return nil, fmt.Errorf("member directory client: %w", err)
	}
	users, err := identity.NewClient(cfg.Upstream.CoreURL, upstreamOpts...)
	if err != nil {
		return nil, fmt.Errorf("identity client: %w", err)
	}

	amount, err := cfg.Finance.DuesAmount()
	if err != nil {
		return nil, err
	}

	balanceRepo := cashbalance.NewRepository(p.DB.DB())
	duesRepo := dues.NewRepository(p.DB.DB())

	balanceSvc, err := cashbalance.NewService(cashbalance.ServiceParams{
		Repo:    balanceRepo,
		Tx:      p.DB,
		Users:   users,
		Metrics: p.Metrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("cash balance service: %w", err)
	}

	duesSvc, err := dues.NewService(dues.ServiceParams{
		Repo:          duesRepo,
		Balance:       balanceRepo,
		Tx:            p.DB,
		Files:         p.Files,
		Metrics:       p.Metrics,
		Logger:        p.Logger,
		DefaultAmount: amount,
	})
	if err != nil {
		return nil, fmt.Errorf("dues service: %w", err)
	}

	querySvc, err := dues.NewQueryService(dues.QueryParams{
		Repo:          duesRepo,
		Members:       directory,
		Logger:        p.Logger,
		PublicBaseURL: cfg.App.PublicURL,
		Location:      cfg.App.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("dues query service: %w", err)
	}

	importSvc, err := duesimport.NewService(duesimport.ServiceParams{
		Dues:    duesSvc,
		Reader:  duesRepo,
		Members: directory,
		Metrics: p.Metrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("dues import service: %w", err)
	}

	return &Services{
		CashBalance: balanceSvc,
		Dues:        duesSvc,
		DuesQuery:   querySvc,
		DuesImport:  importSvc,
		Members:     directory,
		Identity:    users,
	}, nil
}
