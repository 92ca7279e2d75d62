package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReportSink mirrors the final ranked report into a Redis sorted set, an
// additive off-by-default surface per SPEC_FULL.md §4.11. It is grounded on
// the teacher's redis.Client connection-setup shape (redis/client.go);
// stdout output never depends on this sink succeeding.
type ReportSink struct {
	client *redis.Client
	log    *zap.Logger
}

// NewReportSink dials addr eagerly, mirroring redis.NewClient's
// connect-and-ping-at-construction convention.
func NewReportSink(addr string, log *zap.Logger) *ReportSink {
	log = log.Named("report_sink")
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("connection failed", zap.String("addr", addr), zap.Error(err))
	} else {
		log.Info("connection established", zap.String("addr", addr))
	}

	return &ReportSink{client: client, log: log}
}

func (s *ReportSink) Close() error { return s.client.Close() }

// Publish ZADDs every client's total under report:<runTimestamp>, member
// "<id>:<name>", per SPEC_FULL.md §4.11.
func (s *ReportSink) Publish(ctx context.Context, runTimestamp int64, clients []*Client) error {
	key := fmt.Sprintf("report:%d", runTimestamp)
	pipe := s.client.Pipeline()
	for _, c := range clients {
		member := fmt.Sprintf("%d:%s", c.ID, c.Name)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(c.TotalConnectedSeconds), Member: member})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	s.log.Info("published report", zap.String("key", key), zap.Int("clients", len(clients)))
	return nil
}
