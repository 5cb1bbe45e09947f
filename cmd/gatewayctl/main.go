// Command gatewayctl is the operational CLI for chaingateway: it never
// talks to a running gatewayd process directly, only to the same RPC
// endpoints and audit database gatewayd uses, the way go-ethereum's
// own cmd/geth exposes read-only inspection subcommands against a
// node's data directory rather than the running node's memory.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"chaingateway/internal/audit"
	"chaingateway/internal/config"
	"chaingateway/internal/model"
	"chaingateway/internal/rpc"
)

func main() {
	app := &cli.App{
		Name:  "gatewayctl",
		Usage: "operational inspection for the chaingateway daemon",
		Commands: []*cli.Command{
			statusCommand(),
			auditCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// statusCommand reports, per currency, the gap between the RPC tip and
// the block number of the most recently published transaction in the
// audit ledger — a proxy for
// poller cursor lag, adapted from geth-24-monitor's head-lag health
// check (DESIGN.md).
func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "report poller lag against the chain tip",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.RPCTimeout)
			defer cancel()

			ethClient := rpc.New(cfg.Mode.EthereumEndpoint(cfg.InfuraKey), rpc.NewRestyTransport())
			tip, err := ethClient.BlockNumber(ctx)
			if err != nil {
				return err
			}

			store, err := audit.Open(cfg.AuditDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, currency := range []model.Currency{model.Eth, model.Stq} {
				recent, err := store.Recent(ctx, currency, 1)
				if err != nil {
					return err
				}
				if len(recent) == 0 {
					fmt.Printf("%-4s tip=%d lastPublished=none\n", currency, tip)
					continue
				}
				last := recent[0].BlockNumber
				lag := uint64(0)
				if tip > last {
					lag = tip - last
				}
				fmt.Printf("%-4s tip=%d lastPublished=%d lag=%d\n", currency, tip, last, lag)
			}
			return nil
		},
	}
}

// auditCommand lists the most recently published transactions for a
// currency from the local audit ledger.
func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "list recently published transactions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "currency", Required: true, Usage: "btc, eth, or stq"},
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			currency := model.Currency(c.String("currency"))
			if !currency.Valid() {
				return fmt.Errorf("invalid currency %q", c.String("currency"))
			}

			store, err := audit.Open(cfg.AuditDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			records, err := store.Recent(ctx, currency, c.Int("limit"))
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s block=%d fee=%s confirmations=%d\n", r.Hash, r.BlockNumber, r.Fee, r.Confirmations)
			}
			return nil
		},
	}
}
