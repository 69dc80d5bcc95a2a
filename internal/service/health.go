package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
)

// HealthService defines the interface for checking application health.
type HealthService interface {
	Check(ctx context.Context) map[string]string
}

type healthService struct {
	notifs store.NotificationStorage
}

// NewHealthService creates the readiness check over critical
// dependencies.
func NewHealthService(notifs store.NotificationStorage) HealthService {
	return &healthService{notifs: notifs}
}

// Check performs health checks on all critical dependencies.
func (s *healthService) Check(ctx context.Context) map[string]string {
	healthStatus := make(map[string]string)

	// Use a timeout to prevent the health check from hanging.
	dbCtx, dbCancel := context.WithTimeout(ctx, 2*time.Second)
	defer dbCancel()

	if err := s.notifs.Ping(dbCtx); err != nil {
		healthStatus["db"] = fmt.Sprintf("error: %s", err.Error())
	} else {
		healthStatus["db"] = "ok"
	}

	return healthStatus
}
