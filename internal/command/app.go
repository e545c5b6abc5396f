package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/clients/go/market"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/config"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/events"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/flow"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ledger"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/wallet"
)

// Env supplies collaborators to commands. Nil fields are built from
// configuration on first use.
type Env struct {
	Ledger  ledger.Ledger
	Gateway *market.Client
	Events  events.Publisher
}

// app is the state shared by one command invocation.
type app struct {
	env Env

	cfgPath    string
	keyPath    string
	gatewayURL string
	jsonMode   bool
	assumeYes  bool
	verbose    bool

	cfg     *config.Config
	logger  zerolog.Logger
	closers []func()
}

// setup resolves configuration once flags are parsed.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadFrom(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.keyPath == "" {
		a.keyPath = cfg.KeyFile
	}
	if a.gatewayURL == "" {
		a.gatewayURL = cfg.GatewayURL
	}

	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ledger returns the registry client, dialing it on first use.
func (a *app) ledger(ctx context.Context) (ledger.Ledger, error) {
	if a.env.Ledger != nil {
		return a.env.Ledger, nil
	}
	if !a.cfg.LedgerConfigured() {
		return nil, errors.New("no registry configured: set AGENT_REGISTRY_ADDRESS or use --config")
	}
	if !common.IsHexAddress(a.cfg.RegistryAddress) {
		return nil, fmt.Errorf("invalid registry address %q", a.cfg.RegistryAddress)
	}
	client, err := ledger.Dial(ctx, a.cfg.RPCURL, common.HexToAddress(a.cfg.RegistryAddress), a.logger)
	if err != nil {
		return nil, err
	}
	a.env.Ledger = client
	return client, nil
}

// gateway returns the upload gateway client.
func (a *app) gateway() *market.Client {
	if a.env.Gateway == nil {
		a.env.Gateway = market.NewClient(a.gatewayURL, a.cfg.APIKey)
	}
	return a.env.Gateway
}

// events returns the settlement publisher; NATS when configured.
func (a *app) events() events.Publisher {
	if a.env.Events != nil {
		return a.env.Events
	}
	a.env.Events = events.Nop{}
	if a.cfg.NATSURL != "" {
		nc, err := events.Connect(a.cfg.NATSURL, "marketctl", a.logger)
		if err != nil {
			a.logger.Warn().Err(err).Msg("settlement events disabled")
			return a.env.Events
		}
		a.closers = append(a.closers, nc.Close)
		a.env.Events = events.NewNATSPublisher(nc, a.logger)
	}
	return a.env.Events
}

// session loads the key file into a connected wallet session.
func (a *app) session() (*wallet.Session, error) {
	key, err := wallet.LoadKeyFile(a.keyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no key at %s (create one with genkey)", wallet.ErrNotConnected, a.keyPath)
		}
		return nil, err
	}
	s := wallet.NewSession(big.NewInt(a.cfg.ChainID))
	s.Connect(key)
	return s, nil
}

// guard returns the configured rental sanity guard.
func (a *app) guard() (pricing.Guard, error) {
	bound, err := a.cfg.MaxCost()
	if err != nil {
		return pricing.Guard{}, err
	}
	return pricing.NewGuard(bound), nil
}

// authorizer prompts on the command's streams unless --yes was given.
func (a *app) authorizer(in io.Reader, out io.Writer) wallet.Authorizer {
	if a.assumeYes {
		return wallet.AutoApprove
	}
	return wallet.PromptAuthorizer{In: in, Out: out}
}

// engine assembles a submission engine for cmd.
func (a *app) engine(cmd *cobra.Command) (*flow.Engine, error) {
	l, err := a.ledger(cmd.Context())
	if err != nil {
		return nil, err
	}
	s, err := a.session()
	if err != nil {
		return nil, err
	}
	g, err := a.guard()
	if err != nil {
		return nil, err
	}

	var onTransition func(flow.Transition)
	if !a.jsonMode {
		out := cmd.ErrOrStderr()
		onTransition = func(t flow.Transition) {
			if t.To == flow.StateAwaitingSettlement {
				fmt.Fprintln(out, "Waiting for settlement...")
			}
		}
	}

	return flow.New(flow.Config{
		Ledger:       l,
		Session:      s,
		Authorizer:   a.authorizer(cmd.InOrStdin(), cmd.ErrOrStderr()),
		Publisher:    a.gateway(),
		Events:       a.events(),
		Guard:        g,
		OnTransition: onTransition,
		Logger:       a.logger,
	})
}
