package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/GraphCatalog/src"
	"github.com/Blackdeer1524/GraphCatalog/src/delivery"
)

const CloseTimeout = 15 * time.Second

type APIEntrypoint struct {
	EnvFile string
	Env     envVars

	s     *delivery.Server
	stack *Stack
	log   src.Logger
}

func (e *APIEntrypoint) Init(ctx context.Context) error {
	env, err := loadEnv(e.EnvFile)
	if err != nil {
		return err
	}

	e.Env = env
	e.log = newLogger(e.Env.Environment)

	stack, err := newStack(ctx, e.Env, afero.NewOsFs(), e.log)
	if err != nil {
		return fmt.Errorf("failed to build catalog: %w", err)
	}

	e.stack = stack
	e.s = delivery.NewServer(e.Env.ServerHost, e.Env.ServerPort, newRouter(stack, e.log), e.log)

	return nil
}

func (e *APIEntrypoint) Run(_ context.Context) error {
	return e.s.Run()
}

func (e *APIEntrypoint) Close() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
	defer cancel()

	if e.s != nil {
		err = e.s.Close(ctx)
	}

	if e.stack != nil {
		err = errors.Join(err, e.stack.Close())
	}

	if e.log != nil {
		if err != nil {
			e.log.Error("failed to close server", zap.Error(err))
		}

		logErr := e.log.Sync()
		if logErr != nil && err != nil {
			err = fmt.Errorf("%w, %w", err, logErr)
		} else if logErr != nil {
			err = logErr
		}
	}

	return
}
