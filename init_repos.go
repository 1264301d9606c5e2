package main

import (
	"database/sql"

	"github.com/pillarworks/storefront/repository"
)

// Repositories groups every repository so the init functions take one
// parameter instead of a dozen.
type Repositories struct {
	User         repository.UserRepository
	RefreshToken repository.RefreshTokenRepository
	Content      repository.ContentRepository
	Pillar       repository.PillarRepository
	Service      repository.ServiceRepository
	Faq          repository.FaqRepository
	Order        repository.OrderRepository
	Stats        repository.StatsRepository
	Integration  repository.IntegrationRepository
}

func initRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User:         repository.NewSQLiteUserRepo(db),
		RefreshToken: repository.NewSQLiteRefreshTokenRepo(db),
		Content:      repository.NewSQLiteContentRepo(db),
		Pillar:       repository.NewSQLitePillarRepo(db),
		Service:      repository.NewSQLiteServiceRepo(db),
		Faq:          repository.NewSQLiteFaqRepo(db),
		Order:        repository.NewSQLiteOrderRepo(db),
		Stats:        repository.NewSQLiteStatsRepo(db),
		Integration:  repository.NewSQLiteIntegrationRepo(db),
	}
}
