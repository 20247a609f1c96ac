package connector

import "github.com/VictoriaMetrics/metrics"

// Counters instrumenting reactor activity, scraped the way the rest of
// the pack's services expose theirs: process-wide metrics.Counter/
// Histogram objects registered against the default set.
var (
	connectsTotal        = metrics.NewCounter("tnt_connector_connects_total")
	connectFailuresTotal = metrics.NewCounter("tnt_connector_connect_failures_total")
	bytesReadTotal       = metrics.NewCounter("tnt_connector_bytes_read_total")
	bytesWrittenTotal    = metrics.NewCounter("tnt_connector_bytes_written_total")
	framesDecodedTotal   = metrics.NewCounter("tnt_connector_frames_decoded_total")
	waitTimeoutsTotal    = metrics.NewCounter("tnt_connector_wait_timeouts_total")
	epollWaitDuration    = metrics.NewHistogram("tnt_connector_epoll_wait_seconds")
)
