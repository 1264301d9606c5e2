package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// healthPingTimeout bounds the database ping so a stuck pool cannot hang
// the check.
const healthPingTimeout = 2 * time.Second

// Pinger is satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is the body of GET /api/health.
type HealthReport struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version"`
	Connections   int    `json:"ws_connections"`
}

// Healthy reports whether every dependency answered.
func (r *HealthReport) Healthy() bool {
	return r.Status == "ok"
}

type HealthService interface {
	Check(ctx context.Context) *HealthReport
}

type healthService struct {
	db          Pinger
	connections func() int
	version     string
	startedAt   time.Time
	now         func() time.Time
	log         *zap.Logger
}

// NewHealthService, constructor. connections may be nil.
func NewHealthService(db Pinger, connections func() int, version string) HealthService {
	return &healthService{
		db:          db,
		connections: connections,
		version:     version,
		startedAt:   time.Now(),
		now:         time.Now,
		log:         zap.L().Named("health"),
	}
}

func (s *healthService) Check(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:        "ok",
		Database:      "ok",
		UptimeSeconds: int64(s.now().Sub(s.startedAt).Seconds()),
		Version:       s.version,
	}
	if s.connections != nil {
		report.Connections = s.connections()
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := s.db.Ping(pingCtx); err != nil {
		s.log.Warn("database ping failed", zap.Error(err))
		report.Status = "degraded"
		report.Database = "unreachable"
	}
	return report
}
