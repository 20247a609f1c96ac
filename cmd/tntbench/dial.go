package tntbench

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nimbledb/tnt-go/conn"
	"github.com/nimbledb/tnt-go/connector"
)

// dial opens one reactor and one connection against cfg's target, for
// commands that only need a single connection.
func dial(cfg connector.Config, log *zap.Logger) (*connector.Reactor, conn.Connection, error) {
	r, err := connector.New(log)
	if err != nil {
		return nil, conn.Connection{}, err
	}
	c := conn.New(cfg.ConnConfig())
	if err := r.Connect(c, cfg.Host, cfg.Port, cfg.ConnectTimeout); err != nil {
		r.Close()
		return nil, conn.Connection{}, fmt.Errorf("connect %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return r, c, nil
}
