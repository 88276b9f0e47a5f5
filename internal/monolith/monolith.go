// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/solana"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	SolanaClient() *solana.Client
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config       *config.Config
	logger       logger.LoggerInterface
	solanaClient *solana.Client
	container    di.Container
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	solanaClient, err := solana.NewClient(solana.Config{
		Endpoint:          cfg.Solana.RPCURL,
		Timeout:           cfg.Solana.RequestTimeout,
		RequestsPerSecond: cfg.Solana.RequestsPerSecond,
		Commitment:        cfg.Solana.Commitment,
	}, log)
	if err != nil {
		return nil, err
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("solanaClient", solanaClient)

	return &app{
		config:       cfg,
		logger:       log,
		solanaClient: solanaClient,
		container:    container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) SolanaClient() *solana.Client {
	return a.solanaClient
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	return nil
}
