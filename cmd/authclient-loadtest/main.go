package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/authtest"
	"github.com/MrEthical07/authclient/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 200, "number of signed-in session managers")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (me + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	api := authtest.New(authtest.Options{})
	server := api.Start()
	defer server.Close()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	managers := make([]*authclient.Manager, *sessions)
	fmt.Printf("signing in %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range managers {
		email := fmt.Sprintf("user-%d@example.com", i)
		if _, err := api.AddUser(email, "load-test-pw", fmt.Sprintf("User %d", i)); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}

		cfg := authclient.DefaultConfig()
		cfg.APIURL = server.URL
		cfg.Storage = storage.KindSession
		cfg.StorageBackends.RedisPrefix = fmt.Sprintf("%s:%d", *prefix, i)
		cfg.AutoRefresh = false
		cfg.Metrics.EnableLatencyHistograms = true

		m, err := authclient.New().WithConfig(cfg).WithRedis(client).WithLogger(quiet).Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			os.Exit(1)
		}
		defer m.Close()
		if _, err := m.Login(ctx, email, "load-test-pw"); err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		managers[i] = m
	}
	fmt.Printf("signed in in %s\n", time.Since(startSeed).Round(time.Millisecond))

	meStats := runPhase(managers, *ops, *concurrency, 7919, func(m *authclient.Manager) error {
		_, err := m.GetCurrentUser(ctx)
		return err
	})
	refreshStats := runPhase(managers, *ops, *concurrency, 6151, func(m *authclient.Manager) error {
		_, err := m.RefreshToken(ctx)
		return err
	})

	fmt.Println("---- results ----")
	printStats("me", meStats)
	printStats("refresh", refreshStats)

	var (
		shared uint64
		perOp  = map[authclient.Operation]authclient.OperationStats{}
	)
	for _, m := range managers {
		snap := m.MetricsSnapshot()
		shared += snap.Counters[authclient.MetricRefreshShared]
		for op, st := range snap.Operations {
			agg := perOp[op]
			agg.Calls += st.Calls
			agg.Failures += st.Failures
			agg.LatencySum += st.LatencySum
			perOp[op] = agg
		}
	}
	fmt.Printf("refresh coalescing: client_calls=%d api_calls=%d shared=%d\n",
		refreshStats.ops, api.Calls(authtest.OpRefresh), shared)
	printOperations(perOp)
}

// printOperations reports what the managers themselves measured per API
// operation, including transport time only.
func printOperations(perOp map[authclient.Operation]authclient.OperationStats) {
	fmt.Println("---- api calls (client side) ----")
	for _, op := range authclient.Operations {
		st, ok := perOp[op]
		if !ok {
			continue
		}
		var mean time.Duration
		if st.Calls > 0 {
			mean = st.LatencySum / time.Duration(st.Calls)
		}
		fmt.Printf("%-20s calls=%d failures=%d mean=%s\n", op, st.Calls, st.Failures, mean)
	}
}

// runPhase spreads ops calls of op over random managers.
func runPhase(managers []*authclient.Manager, ops, concurrency int, seed int64, op func(*authclient.Manager) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				m := managers[r.Intn(len(managers))]
				t0 := time.Now()
				err := op(m)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
