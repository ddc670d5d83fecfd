package invoice

import (
	"github.com/tutorlane/tutorbill/internal/invoice/repository"
	"github.com/tutorlane/tutorbill/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
