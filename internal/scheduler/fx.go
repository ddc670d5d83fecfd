package scheduler

import (
	"context"
	"os"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartScheduler),
)

func ProvideConfig() Config {
	cfg := DefaultConfig()
	if v, err := time.ParseDuration(os.Getenv("SCHEDULER_RUN_INTERVAL")); err == nil && v > 0 {
		cfg.RunInterval = v
	}
	if v, err := time.ParseDuration(os.Getenv("SCHEDULER_JOB_TIMEOUT")); err == nil && v > 0 {
		cfg.JobTimeout = v
	}
	if v, err := time.ParseDuration(os.Getenv("SCHEDULER_LOCK_TTL")); err == nil && v > 0 {
		cfg.LockTTL = v
	}
	return cfg
}

func StartScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
