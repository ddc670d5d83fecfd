package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the billing rules that operations may tune without a
// redeploy: the tutor payout rate, invoice due offset and batch sizing.
type BillingConfig struct {
	// PayoutRate is the fraction of collected student fees paid out to the
	// tutor, i.e. the complement of the platform commission.
	PayoutRate float64 `mapstructure:"payoutRate"`
	// DueOffsetDays is the number of days between invoice date and due date.
	DueOffsetDays int `mapstructure:"dueOffsetDays"`
	// StudentInvoiceDay is the day of month the student generator runs.
	StudentInvoiceDay int `mapstructure:"studentInvoiceDay"`
	// PayoutDay is the day of month the tutor payout calculator runs. It is
	// offset from StudentInvoiceDay so payment verification has time to mark
	// invoices paid.
	PayoutDay int `mapstructure:"payoutDay"`
	// InsertChunkSize bounds the size of batch inserts.
	InsertChunkSize int `mapstructure:"insertChunkSize"`
	// PayoutConcurrency bounds the fan-out over (tutor, class) pairs.
	PayoutConcurrency int `mapstructure:"payoutConcurrency"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		PayoutRate:        0.85,
		DueOffsetDays:     14,
		StudentInvoiceDay: 1,
		PayoutDay:         5,
		InsertChunkSize:   200,
		PayoutConcurrency: 4,
	}
}

// BillingConfigHolder serves the current billing config and hot-reloads it
// when the backing file changes.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tutorbill/config") // Volume-mounted config
	v.AddConfigPath("/etc/tutorbill")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("TUTORBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.payoutRate", defaults.PayoutRate)
	v.SetDefault("billing.dueOffsetDays", defaults.DueOffsetDays)
	v.SetDefault("billing.studentInvoiceDay", defaults.StudentInvoiceDay)
	v.SetDefault("billing.payoutDay", defaults.PayoutDay)
	v.SetDefault("billing.insertChunkSize", defaults.InsertChunkSize)
	v.SetDefault("billing.payoutConcurrency", defaults.PayoutConcurrency)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config, used by tests.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.PayoutRate <= 0 || cfg.PayoutRate > 1 {
		return errors.New("billing.payoutRate must be in (0, 1]")
	}
	if cfg.DueOffsetDays < 0 {
		return errors.New("billing.dueOffsetDays cannot be negative")
	}
	if cfg.StudentInvoiceDay < 1 || cfg.StudentInvoiceDay > 28 {
		return errors.New("billing.studentInvoiceDay must be between 1 and 28")
	}
	if cfg.PayoutDay < 1 || cfg.PayoutDay > 28 {
		return errors.New("billing.payoutDay must be between 1 and 28")
	}
	if cfg.InsertChunkSize <= 0 {
		return errors.New("billing.insertChunkSize must be positive")
	}
	if cfg.PayoutConcurrency <= 0 {
		return errors.New("billing.payoutConcurrency must be positive")
	}
	return nil
}
