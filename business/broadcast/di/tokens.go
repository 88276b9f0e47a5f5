// Package di contains dependency injection tokens for the broadcast context.
package di

import (
	"github.com/fd1az/spread-monitor/business/broadcast/app"
	"github.com/fd1az/spread-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Hub       = di.NewToken[*app.Hub]("broadcast.Hub")
	Transport = di.NewToken[app.Transport]("broadcast.Transport")
)

// Helper functions for type-safe access
func GetHub(c di.ServiceRegistry) *app.Hub {
	return di.GetToken(c, Hub)
}

func GetTransport(c di.ServiceRegistry) app.Transport {
	return di.GetToken(c, Transport)
}
