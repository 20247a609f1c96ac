package tntbench

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/nimbledb/tnt-go/conn"
	"github.com/nimbledb/tnt-go/internal/logging"
	"github.com/nimbledb/tnt-go/iproto"
	"github.com/nimbledb/tnt-go/mpp"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Insert and select a batch of tuples, reporting throughput",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().Uint32("space", 512, "space id to write into")
	benchCmd.Flags().Int("count", 1000, "number of tuples to insert")
	benchCmd.Flags().String("out", "", "optional path to write a JSON results document")
	_ = viper.BindPFlag("bench.space", benchCmd.Flags().Lookup("space"))
	_ = viper.BindPFlag("bench.count", benchCmd.Flags().Lookup("count"))
	_ = viper.BindPFlag("bench.out", benchCmd.Flags().Lookup("out"))
}

// runBench inserts count tuples sequentially, then selects each one
// back by primary key, reporting wall-clock time for each phase. The
// results document is assembled with sjson the way a CLI reaching for
// a schemaless JSON writer instead of a struct + encoding/json would,
// and re-read once with gjson to print the summary line -- mirroring
// perfCmd.go's benchmark-then-report shape in the dKV example, with a
// JSON sink standing in for that command's CSV export.
func runBench(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	log := newLogger()
	defer log.Sync()

	r, c, err := dial(cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()
	defer r.CloseConnection(c)

	spaceID := uint32(viper.GetUint("bench.space"))
	count := viper.GetInt("bench.count")
	log.Debug("bench starting", logging.Space(spaceID), zap.Int("count", count))

	insertStart := time.Now()
	for i := 0; i < count; i++ {
		sync, err := c.Replace(spaceID, []any{uint64(i), fmt.Sprintf("tntbench-%d", i)})
		if err != nil {
			return fmt.Errorf("replace %d: %w", i, err)
		}
		if err := r.Wait(c, sync, cfg.WaitTimeout); err != nil {
			return fmt.Errorf("wait replace %d: %w", i, err)
		}
		resp, err := c.GetResponse(sync)
		if err != nil {
			return err
		}
		err = resp.Err()
		resp.Close()
		if err != nil {
			return fmt.Errorf("replace %d rejected: %w", i, err)
		}
	}
	insertElapsed := time.Since(insertStart)

	selectStart := time.Now()
	hits := 0
	for i := 0; i < count; i++ {
		sync, err := c.Select(spaceID, 0, 1, 0, iproto.IterEQ, []any{uint64(i)})
		if err != nil {
			return fmt.Errorf("select %d: %w", i, err)
		}
		if err := r.Wait(c, sync, cfg.WaitTimeout); err != nil {
			return fmt.Errorf("wait select %d: %w", i, err)
		}
		resp, err := c.GetResponse(sync)
		if err != nil {
			return err
		}
		if len(resp.Tuples) == 1 {
			hits++
			if i == 0 && viper.GetBool("verbose") {
				logTupleDump(log, c, resp.Tuples[0])
			}
		}
		resp.Close()
	}
	selectElapsed := time.Since(selectStart)

	doc := "{}"
	doc, _ = sjson.Set(doc, "space_id", spaceID)
	doc, _ = sjson.Set(doc, "count", count)
	doc, _ = sjson.Set(doc, "insert_ms", insertElapsed.Milliseconds())
	doc, _ = sjson.Set(doc, "select_ms", selectElapsed.Milliseconds())
	doc, _ = sjson.Set(doc, "hits", hits)

	if out := viper.GetString("bench.out"); out != "" {
		if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}

	fmt.Printf("inserted %d in %s, selected back %d/%d hits in %s\n",
		gjson.Get(doc, "count").Int(),
		insertElapsed,
		gjson.Get(doc, "hits").Int(),
		count,
		selectElapsed)
	return nil
}

// logTupleDump decodes one returned tuple's byte range and logs it as
// JSON, giving --verbose runs a human-readable look at what actually
// came back over the wire instead of just the hit count.
func logTupleDump(log *zap.Logger, c conn.Connection, rng mpp.ByteRange) {
	dec := mpp.NewDecoder(c.Impl().InBuf(), rng.Begin)
	defer dec.Close()
	v, _, err := dec.DecodeAny()
	if err != nil {
		log.Warn("dump tuple failed", zap.Error(err))
		return
	}
	text, err := mpp.Dump(v)
	if err != nil {
		log.Warn("dump tuple failed", zap.Error(err))
		return
	}
	log.Debug("sample tuple", zap.String("tuple", text))
}
