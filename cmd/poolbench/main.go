package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snoekiede/poolkit/pkg/config"
	"github.com/snoekiede/poolkit/pkg/logger"
	"github.com/snoekiede/poolkit/pkg/policy"
	"github.com/snoekiede/poolkit/pkg/pool"
	"github.com/snoekiede/poolkit/pkg/scope"
)

var version = "0.1.0"

// benchResource is the synthetic object the workload pools.
type benchResource struct {
	ID      int64  `json:"id"`
	Scope   string `json:"scope"`
	payload []byte
}

// report is the JSON document printed after a run.
type report struct {
	Elapsed       string       `json:"elapsed"`
	Cycles        int64        `json:"cycles"`
	AcquireErrors int64        `json:"acquire_errors"`
	CyclesPerSec  float64      `json:"cycles_per_sec"`
	ScopeStats    scope.Stats  `json:"scope_stats"`
	PoolStats     []pool.Stats `json:"pool_stats"`
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "poolbench",
		Short: "poolbench - load generator for poolkit pools",
		Long: `poolbench drives a configurable acquire/release workload against a set of
scoped poolkit pools and reports pool, eviction, and scope statistics.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("poolbench v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var (
		configFile  string
		scopes      int
		workers     int
		cycles      int
		policyName  string
		maxPoolSize int
		maxActive   int
		workDelay   time.Duration
		timeout     time.Duration
		logLevel    string
		promText    bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the acquire/release workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := config.FileConfig{}
			if configFile != "" {
				if err := config.Load(configFile, &fc); err != nil {
					return err
				}
				if err := fc.Validate(); err != nil {
					return err
				}
			}

			logCfg := fc.LoggerConfig()
			if logLevel != "" {
				logCfg.Level = logLevel
			}
			if err := logger.Init(logCfg); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runWorkload(runOptions{
				file:        fc,
				scopes:      scopes,
				workers:     workers,
				cycles:      cycles,
				policyName:  policyName,
				maxPoolSize: maxPoolSize,
				maxActive:   maxActive,
				workDelay:   workDelay,
				timeout:     timeout,
				promText:    promText,
			})
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	runCmd.Flags().IntVar(&scopes, "scopes", 4, "number of tenant scopes")
	runCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "concurrent workers")
	runCmd.Flags().IntVar(&cycles, "cycles", 1000, "acquire/release cycles per worker")
	runCmd.Flags().StringVar(&policyName, "policy", "lifo", "retrieval policy (lifo, fifo, priority, lru, roundrobin)")
	runCmd.Flags().IntVar(&maxPoolSize, "max-pool-size", 32, "maximum available objects per pool")
	runCmd.Flags().IntVar(&maxActive, "max-active", 16, "maximum active objects per pool")
	runCmd.Flags().DurationVar(&workDelay, "work", time.Millisecond, "simulated work per cycle")
	runCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "acquire wait timeout")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "log level override")
	runCmd.Flags().BoolVar(&promText, "prometheus", false, "print Prometheus exposition text per pool")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runOptions struct {
	file        config.FileConfig
	scopes      int
	workers     int
	cycles      int
	policyName  string
	maxPoolSize int
	maxActive   int
	workDelay   time.Duration
	timeout     time.Duration
	promText    bool
}

func runWorkload(opts runOptions) error {
	log := logger.Get()
	var created atomic.Int64

	poolFor := func(key scope.Key) (*pool.Pool[*benchResource], error) {
		cfg, err := config.PoolConfig[*benchResource](opts.file)
		if err != nil {
			return nil, err
		}
		if cfg.Name == "" {
			cfg.Name = "bench-" + key.ID
		}
		if opts.maxPoolSize > 0 {
			cfg.MaxPoolSize = opts.maxPoolSize
		}
		if opts.maxActive > 0 {
			cfg.MaxActiveObjects = opts.maxActive
		}
		if opts.policyName != "" {
			parsed, perr := policy.ParseType(opts.policyName)
			if perr != nil {
				return nil, perr
			}
			cfg.Policy = parsed
		}
		cfg.Priority = func(r *benchResource) int { return int(r.ID % 10) }
		cfg.Factory = func() (*benchResource, error) {
			return &benchResource{
				ID:      created.Add(1),
				Scope:   key.ID,
				payload: make([]byte, 256),
			}, nil
		}
		return pool.New(cfg)
	}

	mgr, err := scope.NewManager(opts.file.ScopeConfig(), poolFor)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	keys := make([]scope.Key, opts.scopes)
	for i := range keys {
		keys[i] = scope.Key{ID: fmt.Sprintf("scope-%d", i), TenantID: fmt.Sprintf("tenant-%d", i%2)}
	}

	log.Info("starting workload",
		zap.Int("scopes", opts.scopes),
		zap.Int("workers", opts.workers),
		zap.Int("cycles", opts.cycles),
		zap.String("policy", opts.policyName))

	var totalCycles, acquireErrors atomic.Int64
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < opts.workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < opts.cycles; i++ {
				key := keys[(worker+i)%len(keys)]
				p, err := mgr.GetOrCreate(key)
				if err != nil {
					acquireErrors.Add(1)
					continue
				}
				guard, err := p.AcquireWait(ctx, opts.timeout)
				if err != nil {
					acquireErrors.Add(1)
					continue
				}
				if opts.workDelay > 0 {
					time.Sleep(opts.workDelay)
				}
				_ = guard.Release()
				totalCycles.Add(1)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	rep := report{
		Elapsed:       elapsed.String(),
		Cycles:        totalCycles.Load(),
		AcquireErrors: acquireErrors.Load(),
		CyclesPerSec:  float64(totalCycles.Load()) / elapsed.Seconds(),
		ScopeStats:    mgr.Stats(),
	}
	for _, key := range keys {
		p, err := mgr.GetOrCreate(key)
		if err != nil {
			continue
		}
		rep.PoolStats = append(rep.PoolStats, p.Stats())
		if opts.promText {
			fmt.Println(p.ExportPrometheusMetrics("poolkit"))
		}
	}

	out, err := gojson.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
