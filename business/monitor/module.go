// Package monitor wires the price feeds and the subscription hub around a
// single event loop.
package monitor

import (
	"context"

	broadcastDI "github.com/fd1az/spread-monitor/business/broadcast/di"
	"github.com/fd1az/spread-monitor/business/monitor/app"
	monitorDI "github.com/fd1az/spread-monitor/business/monitor/di"
	pricingDI "github.com/fd1az/spread-monitor/business/pricing/di"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/monolith"
)

// Module implements the monitor bounded context.
type Module struct{}

// RegisterServices registers the coordinator.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, monitorDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		log := sr.Get("logger").(logger.LoggerInterface)

		coord, err := app.NewCoordinator(app.Deps{
			Spreads:   pricingDI.GetSpreadService(sr),
			Hub:       broadcastDI.GetHub(sr),
			Exchange:  pricingDI.GetExchangeFeed(sr),
			OnChain:   pricingDI.GetOnChainPoller(sr),
			Transport: broadcastDI.GetTransport(sr),
		}, log)
		if err != nil {
			panic("failed to create coordinator: " + err.Error())
		}
		return coord
	})

	return nil
}

// Startup starts the coordinator. A listener bind failure is returned.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	coord := monitorDI.GetCoordinator(mono.Services())
	if err := coord.Start(ctx); err != nil {
		return err
	}
	mono.Logger().Info(ctx, "monitor module started")
	return nil
}
