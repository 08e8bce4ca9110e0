package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanConfig holds billing-plan tunables applied by the billing
// reconciler when a payment succeeds.
type PlanConfig struct {
	Code          string `mapstructure:"code"`
	DurationHours int    `mapstructure:"durationHours"`
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Code:          "EVENT_24H",
		DurationHours: 24,
	}
}

// PlanConfigHolder serves the current plan config and hot-reloads it
// when the backing file changes.
type PlanConfigHolder struct {
	current atomic.Value // holds PlanConfig
}

func NewPlanConfigHolder() (*PlanConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/stand")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPlanConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("plan.code", defaults.Code)
		v.SetDefault("plan.durationHours", defaults.DurationHours)
	}

	var cfg PlanConfig
	if err := v.UnmarshalKey("plan", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlanConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlanConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanConfig
		if err := v.UnmarshalKey("plan", &updated); err != nil {
			log.Printf("[plan-config] reload failed: %v", err)
			return
		}
		if err := validatePlanConfig(updated); err != nil {
			log.Printf("[plan-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPlanConfigHolder returns a holder pinned to cfg. Used by tests.
func NewStaticPlanConfigHolder(cfg PlanConfig) *PlanConfigHolder {
	holder := &PlanConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PlanConfigHolder) Get() PlanConfig {
	return h.current.Load().(PlanConfig)
}

func validatePlanConfig(cfg PlanConfig) error {
	if strings.TrimSpace(cfg.Code) == "" {
		return errors.New("plan.code cannot be empty")
	}
	if cfg.DurationHours <= 0 {
		return errors.New("plan.durationHours must be positive")
	}
	return nil
}
