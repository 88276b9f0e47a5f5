// Package broadcast implements the subscriber side: topic subscriptions,
// fan-out of spread snapshots and the socket server that carries them.
package broadcast

import (
	"context"

	"github.com/fd1az/spread-monitor/business/broadcast/app"
	broadcastDI "github.com/fd1az/spread-monitor/business/broadcast/di"
	"github.com/fd1az/spread-monitor/business/broadcast/infra/wsserver"
	pricingDI "github.com/fd1az/spread-monitor/business/pricing/di"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/monolith"
)

// Module implements the broadcast bounded context.
type Module struct{}

// RegisterServices registers the hub and its transport.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, broadcastDI.Hub, func(sr di.ServiceRegistry) *app.Hub {
		log := sr.Get("logger").(logger.LoggerInterface)

		hub, err := app.NewHub(pricingDI.GetSpreadService(sr), log)
		if err != nil {
			panic("failed to create hub: " + err.Error())
		}
		return hub
	})

	di.RegisterToken(c, broadcastDI.Transport, func(sr di.ServiceRegistry) app.Transport {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		serverCfg := wsserver.DefaultConfig(cfg.Server.Port)
		if cfg.Server.SendBuffer > 0 {
			serverCfg.SendBuffer = cfg.Server.SendBuffer
		}
		return wsserver.New(serverCfg, log)
	})

	return nil
}

// Startup is a no-op: the monitor opens the listener once the event loop
// is running.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "broadcast module started", "port", mono.Config().Server.Port)
	return nil
}
