// Command sse_load opens many concurrent connections to the price stream and
// reports how many events arrive. Dropped connections resume from their last
// event id.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type loadOptions struct {
	targetURL   string
	assets      string
	connections int
	duration    time.Duration
	rampUp      time.Duration
	reconnect   bool
}

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	reconnects  atomic.Int64
	events      atomic.Int64
}

func main() {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "sse_load",
		Short: "Load test the pricefeed event stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return run(cmd.Context(), opts, logger)
		},
	}
	cmd.Flags().StringVar(&opts.targetURL, "url", "http://localhost:8080/api/v1/stream", "SSE endpoint URL")
	cmd.Flags().StringVar(&opts.assets, "assets", "", "comma separated asset filter")
	cmd.Flags().IntVar(&opts.connections, "conns", 1000, "number of concurrent connections to open")
	cmd.Flags().DurationVar(&opts.duration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	cmd.Flags().DurationVar(&opts.rampUp, "ramp", 0, "spread connection starts across this window")
	cmd.Flags().BoolVar(&opts.reconnect, "reconnect", true, "resume dropped streams with Last-Event-ID")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(parent context.Context, opts loadOptions, logger *zap.Logger) error {
	if opts.connections <= 0 {
		return fmt.Errorf("invalid conns: %d", opts.connections)
	}
	target, err := url.Parse(opts.targetURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if opts.assets != "" {
		q := target.Query()
		q.Set("assets", opts.assets)
		target.RawQuery = q.Encode()
	}

	if opts.rampUp == 0 && opts.connections > 100 {
		// 1 second per 500 connections
		opts.rampUp = max(time.Duration(opts.connections/500)*time.Second, time.Second)
		logger.Info("using default ramp-up", zap.Duration("ramp", opts.rampUp))
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     opts.connections + 100,
			MaxIdleConns:        opts.connections + 100,
			MaxIdleConnsPerHost: opts.connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting sse load",
		zap.String("url", target.String()),
		zap.Int("conns", opts.connections),
		zap.Duration("duration", opts.duration),
		zap.Duration("ramp", opts.rampUp))

	var (
		c        counters
		wg       sync.WaitGroup
		start    = time.Now()
		interval time.Duration
	)
	if opts.rampUp > 0 {
		interval = opts.rampUp / time.Duration(opts.connections)
	}

	go report(ctx, &c, start, logger)

	for i := 0; i < opts.connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, client, target.String(), opts.reconnect, &c)
		}()
	}
	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d reconnects=%d events=%d elapsed=%s events/s=%.2f\n",
		c.connected.Load(), c.connectErrs.Load(), c.streamErrs.Load(), c.reconnects.Load(), c.events.Load(),
		elapsed.Truncate(time.Millisecond), float64(c.events.Load())/elapsed.Seconds())
	return nil
}

// consume keeps one logical subscription open until ctx ends.
func consume(ctx context.Context, client *http.Client, target string, reconnect bool, c *counters) {
	lastID := ""
	for attempt := 0; ctx.Err() == nil; attempt++ {
		if attempt > 0 {
			if !reconnect {
				return
			}
			c.reconnects.Add(1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			c.connectErrs.Add(1)
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		if lastID != "" {
			req.Header.Set("Last-Event-ID", lastID)
		}

		resp, err := client.Do(req)
		if err != nil {
			c.connectErrs.Add(1)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			c.connectErrs.Add(1)
			_ = resp.Body.Close()
			continue
		}
		if attempt == 0 {
			c.connected.Add(1)
		}

		err = readEvents(resp.Body, func(ev event) {
			if ev.ID != "" {
				lastID = ev.ID
			}
			c.events.Add(1)
		})
		_ = resp.Body.Close()
		if err != nil && ctx.Err() == nil {
			c.streamErrs.Add(1)
		}
	}
}

func report(ctx context.Context, c *counters, start time.Time, logger *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("stream_errs", c.streamErrs.Load()),
				zap.Int64("reconnects", c.reconnects.Load()),
				zap.Int64("events", c.events.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
