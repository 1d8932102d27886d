package sink

import (
	"context"
	"net"
	"strconv"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"eventforge/internal/config"
	"eventforge/internal/dispatch"
	"eventforge/internal/event"
)

const greptimeDefaultPort = 4001

// GreptimeSink writes rendered events to GreptimeDB via the ingester
// client, one row per event with the payload stored as a field. The
// table is auto-created by the server on first write.
type GreptimeSink struct {
	client *greptime.Client
	table  string
}

func newGreptimeSink(cfg config.OutputConfig, env config.Env) (dispatch.Sink, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = env.GreptimeEndpoint
	}
	if endpoint == "" {
		return nil, &config.ConfigError{Field: "outputs.endpoint", Msg: "greptime sink requires an endpoint"}
	}
	db := cfg.Database
	if db == "" {
		db = env.GreptimeDatabase
	}
	tbl := cfg.Table
	if tbl == "" {
		tbl = "synthetic_events"
	}
	return NewGreptimeSink(endpoint, db, tbl)
}

// NewGreptimeSink connects to GreptimeDB. The endpoint is "host" or
// "host:port"; a bare host uses the default gRPC port.
func NewGreptimeSink(endpoint, database, tableName string) (*GreptimeSink, error) {
	host, port := splitGreptimeEndpoint(endpoint)
	cfg := greptime.NewConfig(host).
		WithPort(port).
		WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeSink{client: client, table: tableName}, nil
}

// Deliver implements dispatch.Sink.
func (s *GreptimeSink) Deliver(ctx context.Context, ev event.RenderedEvent) error {
	return s.DeliverBatch(ctx, []event.RenderedEvent{ev})
}

// DeliverBatch implements dispatch.BatchSink.
func (s *GreptimeSink) DeliverBatch(ctx context.Context, evs []event.RenderedEvent) error {
	if len(evs) == 0 {
		return nil
	}

	tbl, err := table.New(s.table)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("pipeline_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("sequence", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("payload", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, ev := range evs {
		if err := tbl.AddRow(ev.PipelineID, float64(ev.Sequence), string(ev.Payload), ev.Timestamp); err != nil {
			return err
		}
	}

	_, err = s.client.Write(ctx, tbl)
	return err
}

// Close implements dispatch.Sink.
func (s *GreptimeSink) Close() error { return nil }

func splitGreptimeEndpoint(endpoint string) (string, int) {
	host, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, greptimeDefaultPort
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return host, greptimeDefaultPort
	}
	return host, port
}
