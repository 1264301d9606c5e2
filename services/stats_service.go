package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pillarworks/storefront/models"
	"github.com/pillarworks/storefront/repository"
)

const recentOrdersOnDashboard = 5

// StatsService builds the admin dashboard summary.
type StatsService interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

type statsService struct {
	stats    repository.StatsRepository
	pillars  repository.PillarRepository
	services repository.ServiceRepository
	faqs     repository.FaqRepository
	users    repository.UserRepository
	currency string
}

// NewStatsService, constructor.
func NewStatsService(
	stats repository.StatsRepository,
	pillars repository.PillarRepository,
	services repository.ServiceRepository,
	faqs repository.FaqRepository,
	users repository.UserRepository,
	currency string,
) StatsService {
	return &statsService{
		stats:    stats,
		pillars:  pillars,
		services: services,
		faqs:     faqs,
		users:    users,
		currency: currency,
	}
}

// Dashboard runs the independent aggregate queries concurrently; the first
// failure cancels the rest.
func (s *statsService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	out := &models.DashboardStats{Currency: s.currency}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.OrdersByStatus, err = s.stats.CountOrdersByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.OrdersByPaymentStatus, err = s.stats.CountOrdersByPaymentStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.PaidRevenue, err = s.stats.PaidRevenue(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.RecentOrders, err = s.stats.RecentOrders(gctx, recentOrdersOnDashboard)
		return err
	})
	g.Go(func() (err error) {
		out.Pillars, err = s.pillars.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Services, err = s.services.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Faqs, err = s.faqs.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Users, err = s.users.Count(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, status := range []models.OrderStatus{
		models.OrderPending, models.OrderConfirmed, models.OrderInProgress, models.OrderCompleted, models.OrderCancelled,
	} {
		out.TotalOrders += out.OrdersByStatus[status]
		if _, ok := out.OrdersByStatus[status]; !ok {
			out.OrdersByStatus[status] = 0
		}
	}
	for _, status := range []models.PaymentStatus{models.PaymentUnpaid, models.PaymentPaid, models.PaymentRefunded} {
		if _, ok := out.OrdersByPaymentStatus[status]; !ok {
			out.OrdersByPaymentStatus[status] = 0
		}
	}
	if out.RecentOrders == nil {
		out.RecentOrders = []models.Order{}
	}
	return out, nil
}
