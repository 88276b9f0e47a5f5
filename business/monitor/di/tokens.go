// Package di contains dependency injection tokens for the monitor context.
package di

import (
	"github.com/fd1az/spread-monitor/business/monitor/app"
	"github.com/fd1az/spread-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Coordinator = di.NewToken[*app.Coordinator]("monitor.Coordinator")
)

// Helper functions for type-safe access
func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}
