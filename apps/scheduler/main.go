package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tutorlane/tutorbill/internal/class"
	"github.com/tutorlane/tutorbill/internal/clock"
	"github.com/tutorlane/tutorbill/internal/config"
	"github.com/tutorlane/tutorbill/internal/enrollment"
	"github.com/tutorlane/tutorbill/internal/invoice"
	"github.com/tutorlane/tutorbill/internal/joblock"
	"github.com/tutorlane/tutorbill/internal/migration"
	"github.com/tutorlane/tutorbill/internal/observability"
	"github.com/tutorlane/tutorbill/internal/providers"
	"github.com/tutorlane/tutorbill/internal/scheduler"
	"github.com/tutorlane/tutorbill/internal/tutorinvoice"
	"github.com/tutorlane/tutorbill/pkg/db"
	"go.uber.org/fx"
)

// Headless deployment that runs the monthly billing jobs without the HTTP
// API. Run a single replica, or keep the redis job lock enabled so replicas
// do not race each other.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services required by the jobs
		class.Module,
		enrollment.Module,
		invoice.Module,
		tutorinvoice.Module,

		joblock.Module,
		providers.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
