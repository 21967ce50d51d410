package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/fragmetric-labs/fragmetric-engine/config"
	"github.com/fragmetric-labs/fragmetric-engine/engine"
	"github.com/fragmetric-labs/fragmetric-engine/event"
	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/metrics"
	"github.com/fragmetric-labs/fragmetric-engine/opclient"
	"github.com/fragmetric-labs/fragmetric-engine/operation"
	"github.com/fragmetric-labs/fragmetric-engine/pricing"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
	"github.com/fragmetric-labs/fragmetric-engine/store"

	_ "net/http/pprof"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	showVersionFlag := flag.Bool("version", false, "show version and exit")
	verboseFlag := flag.Bool("verbose", false, "verbose mode - show debug logs")
	enablePprofFlag := flag.Bool("enable-pprof", false, "enable pprof server")
	configPathFlag := flag.String("config", "fund-operator.yml", "path to the operator config file")
	flag.Parse()

	if *showVersionFlag {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	log := newLogger(*verboseFlag)

	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			err := http.ListenAndServe("localhost:6060", nil)
			if err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	cfg, err := config.LoadOperatorConfig(*configPathFlag)
	if err != nil {
		log.Error("failed to load operator config", "error", err)
		return err
	}
	networkConfig, err := config.NetworkConfigForEnv(cfg.Environment)
	if err != nil {
		log.Error("failed to get network config", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	clock := clockwork.NewRealClock()
	rpcClient := rpc.New(networkConfig.SolanaRPC)

	rpcSource, err := pricing.NewRPCSource(pricing.RPCSourceConfig{
		Logger: log,
		Client: rpcClient,
	})
	if err != nil {
		log.Error("failed to create rpc pricing source", "error", err)
		return err
	}
	provider, err := pricing.NewProvider(pricing.ProviderConfig{
		Logger:   log,
		Source:   pricing.FallbackSource{pricing.NewStaticSource(), rpcSource},
		CacheTTL: cfg.PriceRefreshInterval,
	})
	if err != nil {
		log.Error("failed to create pricing provider", "error", err)
		return err
	}
	defer provider.Close()

	fundAccount, rewardAccount, snap, err := loadState(cfg)
	if err != nil {
		log.Error("failed to load state", "error", err)
		return err
	}

	simulator, err := opclient.NewSimulator(opclient.SimulatorConfig{
		Logger: log,
		Fund:   fundAccount,
	})
	if err != nil {
		log.Error("failed to create operation client", "error", err)
		return err
	}
	pipeline, err := operation.New(operation.Config{
		Logger:          log,
		Clock:           clock,
		Fund:            fundAccount,
		Staking:         simulator,
		Restaking:       simulator,
		Swap:            simulator,
		Normalizer:      simulator,
		MaxItemsPerStep: cfg.MaxItemsPerStep,
		CooldownSeconds: cfg.CooldownSeconds,
	})
	if err != nil {
		log.Error("failed to create operation pipeline", "error", err)
		return err
	}

	eng, err := engine.New(engine.Config{
		Logger:        log,
		Clock:         clock,
		Emitter:       &event.LogEmitter{Log: log},
		Fund:          fundAccount,
		Reward:        rewardAccount,
		Pipeline:      pipeline,
		Admin:         solana.MustPublicKeyFromBase58(cfg.Admin),
		FundManager:   solana.MustPublicKeyFromBase58(cfg.FundManager),
		Operator:      solana.MustPublicKeyFromBase58(cfg.Operator),
		DepositSigner: cfg.DepositSignerKey(),
	})
	if err != nil {
		log.Error("failed to create engine", "error", err)
		return err
	}
	if snap != nil {
		eng.Restore(snap)
	}

	log.Info("fund operator starting",
		"environment", networkConfig.Moniker,
		"receiptTokenMint", cfg.ReceiptTokenMint,
		"stepInterval", cfg.StepInterval.String(),
	)
	return operatorLoop(ctx, log, clock, cfg, eng, provider, rpcClient)
}

// loadState builds the fund and reward accounts, returning the snapshot to
// restore from when one exists on disk.
func loadState(cfg *config.OperatorConfig) (*fund.Account, *reward.Account, *store.Snapshot, error) {
	receiptTokenMint := solana.MustPublicKeyFromBase58(cfg.ReceiptTokenMint)
	wrapAccount := solana.MustPublicKeyFromBase58(cfg.WrapAccount)

	fundAccount := fund.NewAccount(receiptTokenMint, solana.TokenProgramID, 9)
	fundAccount.BatchThresholdSeconds = cfg.BatchThresholdSeconds
	rewardAccount := reward.NewAccount(receiptTokenMint, wrapAccount)

	snap, err := store.Load(cfg.SnapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fundAccount, rewardAccount, nil, nil
		}
		return nil, nil, nil, err
	}
	return fundAccount, rewardAccount, snap, nil
}

// operatorLoop drives the three periodic duties: refreshing prices, stepping
// the operation pipeline and snapshotting state.
func operatorLoop(ctx context.Context, log *slog.Logger, clock clockwork.Clock, cfg *config.OperatorConfig, eng *engine.Engine, provider *pricing.Provider, rpcClient *rpc.Client) error {
	operator := solana.MustPublicKeyFromBase58(cfg.Operator)

	stepTicker := clock.NewTicker(cfg.StepInterval)
	defer stepTicker.Stop()
	priceTicker := clock.NewTicker(cfg.PriceRefreshInterval)
	defer priceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down, saving snapshot")
			if err := store.Save(cfg.SnapshotPath, eng.Snapshot()); err != nil {
				log.Error("failed to save snapshot", "error", err)
				return err
			}
			return nil

		case <-priceTicker.Chan():
			slot, err := currentSlot(ctx, rpcClient)
			if err != nil {
				log.Warn("failed to get current slot", "error", err)
				continue
			}
			if err := eng.UpdatePrices(ctx, operator, provider.PriceFunc(ctx), slot); err != nil {
				metrics.PriceUpdateErrorsTotal.Inc()
				log.Warn("failed to update prices", "error", err)
				continue
			}
			metrics.PriceUpdatesTotal.Inc()
			metrics.ReceiptTokenPriceLamports.Set(float64(eng.Fund().OneReceiptTokenAsSOL))
			metrics.ReceiptTokenSupply.Set(float64(eng.Fund().ReceiptTokenSupply))

		case <-stepTicker.Chan():
			slot, err := currentSlot(ctx, rpcClient)
			if err != nil {
				log.Warn("failed to get current slot", "error", err)
				continue
			}
			outcome, err := eng.RunCommand(ctx, operator, slot, nil)
			if err != nil {
				metrics.CommandStepErrorsTotal.WithLabelValues("unknown").Inc()
				log.Error("command step failed", "error", err)
				continue
			}
			status := "inProgress"
			if outcome.Status == operation.StepAdvanced {
				status = "advanced"
			}
			metrics.CommandStepsTotal.WithLabelValues(outcome.Command.String(), status).Inc()
			log.Debug("command step",
				"command", outcome.Command.String(),
				"status", status,
				"numOperated", outcome.NumOperated,
			)
			if outcome.Status == operation.StepAdvanced {
				if err := store.Save(cfg.SnapshotPath, eng.Snapshot()); err != nil {
					log.Error("failed to save snapshot", "error", err)
					continue
				}
				metrics.SnapshotSavesTotal.Inc()
			}
		}
	}
}

func currentSlot(ctx context.Context, client *rpc.Client) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return client.GetSlot(ctx, rpc.CommitmentConfirmed)
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.RFC3339,
	}))
}
