package command

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/observer"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

func parseAgentID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid agent id %q", arg)
	}
	return id, nil
}

func newAgentsCmd(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List all registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch models.Status(status) {
			case "", models.StatusFree, models.StatusRented, models.StatusUnavailable:
			default:
				return fmt.Errorf("--status must be free, rented or unavailable")
			}

			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			dir := observer.NewDirectory(l, a.cfg.PollInterval, a.logger)
			if err := dir.Refresh(cmd.Context()); err != nil {
				return err
			}

			views := dir.Snapshot().Views(time.Now())
			if status != "" {
				filtered := views[:0]
				for _, v := range views {
					if v.Status == models.Status(status) {
						filtered = append(filtered, v)
					}
				}
				views = filtered
			}

			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			renderAgents(cmd.OutOrStdout(), views)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show agents with this status (free, rented, unavailable)")
	return cmd
}

func newAgentCmd(a *app) *cobra.Command {
	var noMetadata bool

	cmd := &cobra.Command{
		Use:   "agent <id>",
		Short: "Show one agent with its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAgentID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			l, err := a.ledger(ctx)
			if err != nil {
				return err
			}

			agent, err := l.Agent(ctx, id)
			if err != nil {
				return err
			}
			rental, err := l.Rental(ctx, id)
			if err != nil {
				return err
			}
			now := time.Now()
			view := models.NewAgentView(agent, rental, now)

			if !noMetadata && agent.ContentRef != "" {
				fetcher, err := ipfs.NewMetadataFetcher(ipfs.NewGateway(a.cfg.IPFSGateway), 1, a.logger)
				if err != nil {
					return err
				}
				if doc, err := fetcher.Fetch(ctx, agent.ContentRef); err != nil {
					a.logger.Warn().Err(err).Msg("metadata unavailable")
				} else {
					view.Metadata = doc
				}
			}

			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			renderAgent(cmd.OutOrStdout(), view, now)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "skip fetching the metadata document")
	return cmd
}

type observationOutput struct {
	AgentID          uint64        `json:"agentId"`
	At               time.Time     `json:"at"`
	Status           models.Status `json:"status,omitempty"`
	Renter           string        `json:"renter,omitempty"`
	RemainingSeconds int64         `json:"remainingSeconds"`
	Error            string        `json:"error,omitempty"`
}

func toObservationOutput(obs observer.Observation) observationOutput {
	out := observationOutput{AgentID: obs.AgentID, At: obs.At}
	if obs.Err != nil {
		out.Error = obs.Err.Error()
		return out
	}
	out.Status = obs.Status
	out.RemainingSeconds = int64(obs.TimeRemaining / time.Second)
	if obs.Rented && obs.Rental != nil {
		out.Renter = obs.Rental.Renter.Hex()
	}
	return out
}

func (a *app) printObservation(cmd *cobra.Command, obs observer.Observation) error {
	out := toObservationOutput(obs)
	if a.jsonMode {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	w := cmd.OutOrStdout()
	stamp := obs.At.Format("15:04:05")
	switch {
	case out.Error != "":
		fmt.Fprintf(w, "%s  agent #%d  error: %s\n", stamp, out.AgentID, out.Error)
	case out.Status == models.StatusRented:
		fmt.Fprintf(w, "%s  agent #%d  rented  %s remaining  renter %s\n",
			stamp, out.AgentID, remaining(out.RemainingSeconds), shortAddress(out.Renter))
	default:
		fmt.Fprintf(w, "%s  agent #%d  %s\n", stamp, out.AgentID, out.Status)
	}
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch <id>...",
		Short: "Follow rental status of agents until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint64, 0, len(args))
			for _, arg := range args {
				id, err := parseAgentID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			l, err := a.ledger(ctx)
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = a.cfg.PollInterval
			}
			w := observer.NewWatcher(l, interval, a.logger)

			if once {
				for _, id := range ids {
					if err := a.printObservation(cmd, w.Poll(ctx, id)); err != nil {
						return err
					}
				}
				return nil
			}

			merged := make(chan observer.Observation)
			var wg sync.WaitGroup
			for _, id := range ids {
				ch := w.Watch(ctx, id)
				wg.Add(1)
				go func() {
					defer wg.Done()
					for obs := range ch {
						select {
						case merged <- obs:
						case <-ctx.Done():
							return
						}
					}
				}()
			}
			go func() {
				wg.Wait()
				close(merged)
			}()

			for obs := range merged {
				if err := a.printObservation(cmd, obs); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "print the current state once and exit")
	return cmd
}

type quoteOutput struct {
	AgentID   uint64 `json:"agentId"`
	Extension bool   `json:"extension"`
	pricing.QuoteDisplay
}

func newQuoteCmd(a *app) *cobra.Command {
	var (
		duration string
		extend   bool
	)

	cmd := &cobra.Command{
		Use:   "quote <id>",
		Short: "Price a rental without submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAgentID(args[0])
			if err != nil {
				return err
			}
			secs, err := units.ParseDurationString(duration)
			if err != nil {
				return err
			}
			g, err := a.guard()
			if err != nil {
				return err
			}
			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			agent, err := l.Agent(cmd.Context(), id)
			if err != nil {
				return err
			}

			base := agent.BasePrice
			if extend || base == nil {
				base = new(big.Int)
			}
			q, err := pricing.NewQuote(agent.PricePerSecond, base, secs, g)
			if err != nil {
				return err
			}

			out := quoteOutput{AgentID: id, Extension: extend, QuoteDisplay: q.Display()}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Agent #%d for %s\n", id, remaining(secs))
			fmt.Fprintf(w, "  Rate:  %s per second\n", out.PricePerSecond)
			if !extend {
				fmt.Fprintf(w, "  Base:  %s\n", out.BasePrice)
			}
			fmt.Fprintf(w, "  Total: %s\n", out.Total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&duration, "duration", "d", "1h", "rental length, e.g. 3600, 90m, 2h, 1d")
	cmd.Flags().BoolVar(&extend, "extend", false, "price an extension (no base fee)")
	return cmd
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show withdrawable earnings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner common.Address
			if len(args) == 1 {
				if !common.IsHexAddress(args[0]) {
					return fmt.Errorf("invalid address %q", args[0])
				}
				owner = common.HexToAddress(args[0])
			} else {
				s, err := a.session()
				if err != nil {
					return err
				}
				if owner, err = s.Account(); err != nil {
					return err
				}
			}

			l, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			bal, err := l.Balance(cmd.Context(), owner)
			if err != nil {
				return err
			}

			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"owner":               owner.Hex(),
					"balance":             units.FormatAmount(bal),
					"balanceSmallestUnit": bal.String(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", owner.Hex(), units.FormatAmount(bal))
			return nil
		},
	}
}

func newAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the wallet account commands act as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			addr, err := s.Account()
			if err != nil {
				return err
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"account": addr.Hex(),
					"chainId": s.ChainID().String(),
					"keyFile": a.keyPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s on chain %s\n", addr.Hex(), s.ChainID())
			return nil
		},
	}
}

func newUploadsCmd(a *app) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List content pinned through the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.gateway().ListUploads(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Uploads) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No uploads")
				return nil
			}
			now := time.Now()
			table := newTable(cmd.OutOrStdout(), "CID", "KIND", "NAME", "SIZE", "WHEN")
			for _, u := range resp.Uploads {
				table.Append([]string{
					u.CID,
					string(u.Kind),
					u.Name,
					humanize.Bytes(uint64(u.Size)),
					humanize.RelTime(u.CreatedAt, now, "ago", "from now"),
				})
			}
			table.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(resp.Uploads), resp.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum uploads to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many uploads")
	return cmd
}
