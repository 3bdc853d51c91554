// Package provision инициализирует PostgreSQL и MongoDB при первом запуске.
//
// Каждый инициализатор сначала ждет готовности хранилища, затем создает
// учетную запись приложения, базу и схему, если их еще нет. Повторный
// запуск ничего не меняет.
package provision

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Initializer инициализирует одно хранилище
type Initializer interface {
	Name() string
	Init(ctx context.Context) error
}

// Provisioner запускает инициализаторы параллельно
type Provisioner struct {
	initializers []Initializer
	logger       *zap.Logger
}

// NewProvisioner создает Provisioner
func NewProvisioner(logger *zap.Logger, initializers ...Initializer) *Provisioner {
	return &Provisioner{initializers: initializers, logger: logger}
}

// Run инициализирует все хранилища и возвращает первую ошибку
func (p *Provisioner) Run(ctx context.Context) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	for _, in := range p.initializers {
		g.Go(func() error {
			p.logger.Info("Provisioning datastore", zap.String("datastore", in.Name()))
			if err := in.Init(gctx); err != nil {
				p.logger.Error("Provisioning failed", zap.String("datastore", in.Name()), zap.Error(err))
				return fmt.Errorf("provision %s: %w", in.Name(), err)
			}
			p.logger.Info("Datastore provisioned", zap.String("datastore", in.Name()))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	p.logger.Info("Provisioning completed",
		zap.Int("datastores", len(p.initializers)),
		zap.Duration("duration", time.Since(start)))
	return nil
}
