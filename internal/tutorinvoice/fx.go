package tutorinvoice

import (
	"github.com/tutorlane/tutorbill/internal/tutorinvoice/repository"
	"github.com/tutorlane/tutorbill/internal/tutorinvoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tutorinvoice",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
