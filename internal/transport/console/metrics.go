package console

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

type metric struct {
	name  string
	kind  string
	help  string
	value uint64
}

// MetricsHandler serves the mend counters in the Prometheus text format.
func (s *Server) MetricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.permitted(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		st, err := s.State(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, st)
	}
}

func writeMetrics(w io.Writer, st State) {
	m := st.Mend
	for _, x := range []metric{
		{"creepair_world_tick", "gauge", "Current world tick.", st.World.Tick},
		{"creepair_world_creepers", "gauge", "Creepers alive in the world.", uint64(st.World.Creepers)},
		{"creepair_world_items", "gauge", "Dropped item entities in the world.", uint64(st.World.Items)},
		{"creepair_mend_live_records", "gauge", "Explosions still being mended.", uint64(m.LiveRecords)},
		{"creepair_mend_pending_blocks", "gauge", "Blocks waiting to be restored.", uint64(m.PendingBlocks)},
		{"creepair_mend_period_ticks", "gauge", "Ticks between restore runs.", uint64(m.PeriodTicks)},
		{"creepair_mend_max_per_tick", "gauge", "Blocks restored per record per run.", uint64(m.MaxPerTick)},
		{"creepair_mend_records_opened_total", "counter", "Mend records opened.", m.RecordsOpened},
		{"creepair_mend_records_exhausted_total", "counter", "Mend records fully processed.", m.RecordsExhausted},
		{"creepair_mend_blocks_restored_total", "counter", "Blocks restored.", m.BlocksRestored},
		{"creepair_mend_blocks_failed_total", "counter", "Restore attempts that failed.", m.BlocksFailed},
		{"creepair_mend_suppressed_notify_total", "counter", "Neighbour updates cancelled.", m.SuppressedNotify},
		{"creepair_mend_suppressed_decay_total", "counter", "Decays cancelled.", m.SuppressedDecay},
		{"creepair_mend_suppressed_drop_total", "counter", "Item drops cancelled.", m.SuppressedDrop},
	} {
		fmt.Fprintf(w, "# HELP %s %s\n", x.name, x.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", x.name, x.kind)
		fmt.Fprintf(w, "%s %d\n", x.name, x.value)
	}
}
