// Command aggregator ingests a directory of per-server-run log files and
// prints a ranked, per-client connected-time report, per spec.md §4.6-§4.9
// and §6's CLI surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chrisn731/ts3supervisor/internal/aggregator"
	"github.com/chrisn731/ts3supervisor/pkg/fmtt"
)

const dateFloorLayout = "01-02-2006"

func main() {
	var (
		dateFloor = flag.String("d", "", "drop events before this date (MM-DD-YYYY)")
		rawSecs   = flag.Bool("s", false, "print totals as raw seconds instead of D/H/M/S")
		lowestN   = flag.Int("t", 0, "print only the N lowest totals")
		highestN  = flag.Int("h", 0, "print only the N highest totals")
		redisAddr = flag.String("redis-addr", "", "mirror the final report into this Redis instance's sorted set")
	)
	flag.Parse()

	if *lowestN > 0 && *highestN > 0 {
		fmt.Fprintln(os.Stderr, "aggregator: -t and -h are mutually exclusive")
		os.Exit(1)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: aggregator [-d MM-DD-YYYY] [-s] [-t N | -h N] [-redis-addr ADDR] <log-dir>")
		os.Exit(1)
	}
	dir := flag.Arg(0)

	log := newLogger()
	defer log.Sync()

	var floor time.Time
	if *dateFloor != "" {
		t, err := time.Parse(dateFloorLayout, *dateFloor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "aggregator: invalid -d date %q: %v\n", *dateFloor, err)
			os.Exit(1)
		}
		floor = t
	}

	warn := func(msg string) { log.Warn(msg) }

	ct, err := aggregator.Run(dir, aggregator.RunOptions{Floor: floor, Warn: warn})
	if err != nil {
		fmtt.PrintFatal(err)
		os.Exit(1)
	}

	opts := aggregator.ReportOptions{Mode: aggregator.ModeAll, RawSeconds: *rawSecs}
	switch {
	case *lowestN > 0:
		opts.Mode = aggregator.ModeLowestN
		opts.N = *lowestN
	case *highestN > 0:
		opts.Mode = aggregator.ModeHighestN
		opts.N = *highestN
	}

	clients := aggregator.SortedClients(ct, opts)
	if err := aggregator.WriteReport(os.Stdout, clients, *rawSecs); err != nil {
		fmtt.PrintFatal(err)
		os.Exit(1)
	}

	if *redisAddr != "" {
		sink := aggregator.NewReportSink(*redisAddr, log)
		defer sink.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sink.Publish(ctx, time.Now().Unix(), clients); err != nil {
			log.Warn("report sink publish failed", zap.Error(err))
		}
	}
}

// newLogger matches cmd/zmux-server/main.go's interactive-use encoder: this
// binary is always run in the foreground from a shell, so it never needs
// the production JSON logger the daemonized supervisor writes to its log
// sink.
func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	log := zap.Must(cfg.Build())
	return log.Named("aggregator")
}
