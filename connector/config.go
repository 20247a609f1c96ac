package connector

import (
	"time"

	"github.com/nimbledb/tnt-go/conn"
)

// Config bundles the knobs spec section 6 lists (per-connector default
// wait timeout, per-buffer block size, GC step count) into one struct a
// caller can load from viper/env instead of wiring them by hand.
type Config struct {
	Host           string
	Port           string
	ConnectTimeout time.Duration
	WaitTimeout    time.Duration
	BlockSize      int
	GCStepCount    int
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultTimeout
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultTimeout
	}
	return c
}

// ConnConfig extracts the conn.Config subset of these knobs.
func (c Config) ConnConfig() conn.Config {
	return conn.Config{BlockSize: c.BlockSize, GCStepCount: c.GCStepCount}
}
