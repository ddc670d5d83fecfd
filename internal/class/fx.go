package class

import (
	"github.com/tutorlane/tutorbill/internal/class/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("class",
	fx.Provide(repository.Provide),
)
