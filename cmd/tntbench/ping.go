package tntbench

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nimbledb/tnt-go/internal/logging"
	"github.com/nimbledb/tnt-go/iproto"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send N concurrent pings and report round-trip latency",
	RunE:  runPing,
}

func init() {
	pingCmd.Flags().Int("count", 3, "number of concurrent pings")
	_ = viper.BindPFlag("ping.count", pingCmd.Flags().Lookup("count"))
}

// runPing opens one connection and fires `count` pings, gathering them
// with waitAll the same way the "three parallel pings" scenario spec
// section 8 describes does -- driven here with golang.org/x/sync/errgroup
// instead of a raw sync.WaitGroup, matching how errgroup is used
// elsewhere in the retrieval pack for a fixed batch of concurrent calls.
func runPing(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	log := newLogger()
	defer log.Sync()

	runID := uuid.NewString()
	log.Info("ping run starting", zap.String("run_id", runID), zap.String("target", cfg.Host+":"+cfg.Port))

	r, c, err := dial(cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()
	defer r.CloseConnection(c)

	count := viper.GetInt("ping.count")
	syncs := make([]uint64, count)

	g, _ := errgroup.WithContext(cmd.Context())
	// Connection and Reactor are not safe for concurrent use, so the
	// goroutines run one at a time; every ping is still in flight before
	// WaitAll drains them.
	g.SetLimit(1)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			sync, err := c.Ping()
			if err != nil {
				return fmt.Errorf("ping %d: %w", i, err)
			}
			syncs[i] = sync
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	start := time.Now()
	if err := r.WaitAll(c, syncs, cfg.WaitTimeout); err != nil {
		return fmt.Errorf("waitAll: %w", err)
	}
	elapsed := time.Since(start)

	for _, sync := range syncs {
		resp, err := c.GetResponse(sync)
		if err != nil {
			return err
		}
		log.Debug("pong", logging.Sync(sync), logging.RequestType(iproto.ReqPing))
		if err := resp.Err(); err != nil {
			resp.Close()
			return err
		}
		resp.Close()
	}

	fmt.Printf("run %s: %d pings in %s (%s avg)\n", runID, count, elapsed, elapsed/time.Duration(count))
	return nil
}
