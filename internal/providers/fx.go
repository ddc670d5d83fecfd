package providers

import (
	"github.com/tutorlane/tutorbill/internal/providers/email"
	"github.com/tutorlane/tutorbill/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
