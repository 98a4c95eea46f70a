package connectors

import (
	"context"
	"strings"

	domrepo "FxBridge/internal/domain/repository"
	"FxBridge/pkg/logger"
)

// Config enables and configures the broker connectors.
type Config struct {
	MT4Enabled   bool           `yaml:"mt4_enabled"`
	MT4          MTBridgeConfig `yaml:"mt4"`
	MT5Enabled   bool           `yaml:"mt5_enabled" default:"true"`
	MT5          MTBridgeConfig `yaml:"mt5"`
	OandaEnabled bool           `yaml:"oanda_enabled"`
	Oanda        OandaConfig    `yaml:"oanda"`
	IBKREnabled  bool           `yaml:"ibkr_enabled"`
	IBKR         IBKRConfig     `yaml:"ibkr"`
}

// Build instantiates every enabled connector.
func Build(cfg Config) []domrepo.Connector {
	var out []domrepo.Connector
	if cfg.MT4Enabled {
		c := cfg.MT4
		c.Broker = "mt4"
		out = append(out, NewMTBridge(c))
	}
	if cfg.MT5Enabled {
		c := cfg.MT5
		c.Broker = "mt5"
		out = append(out, NewMTBridge(c))
	}
	if cfg.OandaEnabled {
		out = append(out, NewOanda(cfg.Oanda))
	}
	if cfg.IBKREnabled {
		out = append(out, NewIBKR(cfg.IBKR))
	}
	return out
}

// ConnectAll dials every connector, logging failures instead of aborting:
// a broker that is down at startup reconnects on its next health check.
func ConnectAll(ctx context.Context, connectors []domrepo.Connector, log *logger.Logger) {
	for _, conn := range connectors {
		if err := conn.Connect(ctx); err != nil && log != nil {
			log.Warn("connector dial failed",
				logger.String("broker", strings.ToLower(conn.Broker())), logger.Error(err))
		}
	}
}
