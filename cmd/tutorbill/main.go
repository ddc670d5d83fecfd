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
	"github.com/tutorlane/tutorbill/internal/server"
	"github.com/tutorlane/tutorbill/internal/tutorinvoice"
	"github.com/tutorlane/tutorbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Billing domains
		class.Module,
		enrollment.Module,
		invoice.Module,
		tutorinvoice.Module,

		// Periodic jobs plus their supporting infrastructure
		joblock.Module,
		providers.Module,
		scheduler.Module,

		server.Module,
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
