// Command gatewayd is the gateway daemon: it loads configuration,
// wires up one RPC client/Normalizer/Walker/Poller chain per tracked
// currency, starts the Publisher/Broker Pool, and serves the HTTP
// submission API, all under one cancellation context — the same
// top-level shape as the teacher's standalone cmd/ programs, scaled up
// to a long-running service.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chaingateway/internal/audit"
	"chaingateway/internal/bitcoin"
	"chaingateway/internal/broker"
	"chaingateway/internal/config"
	"chaingateway/internal/httpapi"
	"chaingateway/internal/logging"
	"chaingateway/internal/model"
	"chaingateway/internal/normalizer"
	"chaingateway/internal/poller"
	"chaingateway/internal/publisher"
	"chaingateway/internal/rpc"
	"chaingateway/internal/walker"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logging.Setup(*verbose)
	log := logging.New("component", "gatewayd")

	cfg, err := config.Load()
	if err != nil {
		log.Crit("loading configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		log.Crit("opening audit database", "err", err)
		os.Exit(1)
	}
	defer auditStore.Close()

	brokerPool := broker.NewPool(broker.Config{
		URL:               cfg.Broker.URL,
		PoolSize:          cfg.Broker.PoolSize,
		ConnectionTimeout: cfg.Broker.ConnectionTimeout,
		AcquireTimeout:    cfg.Broker.AcquireTimeout,
		Heartbeat:         cfg.Broker.Heartbeat,
	})
	defer brokerPool.Close()

	pub := publisher.New(brokerPool, auditStore)

	ethEndpoint := cfg.Mode.EthereumEndpoint(cfg.InfuraKey)
	ethClient := rpc.New(ethEndpoint, rpc.NewRestyTransport())

	ethWalker := walker.New(ethClient, cfg.StqContractAddress, cfg.StqTransferTopic, cfg.ETH.ConcurrentFetchLimit)
	ethPoller := poller.New(model.Eth, ethWalker, ethClient, pub, poller.Config{
		TickInterval:      cfg.ETH.TickInterval,
		ConfirmationDepth: cfg.ETH.ConfirmationDepth,
		StartBlock:        cfg.ETH.StartBlock,
		MaxBatchSize:      cfg.ETH.MaxBatchSize,
	})

	stqPoller := poller.New(model.Stq, walker.New(ethClient, cfg.StqContractAddress, cfg.StqTransferTopic, cfg.STQ.ConcurrentFetchLimit), ethClient, pub, poller.Config{
		TickInterval:      cfg.STQ.TickInterval,
		ConfirmationDepth: cfg.STQ.ConfirmationDepth,
		StartBlock:        cfg.STQ.StartBlock,
		MaxBatchSize:      cfg.STQ.MaxBatchSize,
	})

	// The normalizer's sanity check is run once at startup for its
	// logging side-effect (warns on a misconfigured stq_transfer_topic);
	// the Walker/Normalizer split keeps the check out of the hot path.
	_ = normalizer.New(cfg.StqContractAddress, cfg.StqTransferTopic)

	btcClient := bitcoin.New(cfg.Mode.BitcoinEndpoint(), cfg.BlockcypherToken)

	go ethPoller.Run(ctx)
	go stqPoller.Run(ctx)

	server := httpapi.New(btcClient, ethClient, btcClient, ethWalker)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router()}
	go func() {
		log.Info("http api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RPCTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
