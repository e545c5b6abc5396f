package ledger

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

//go:embed registry.abi.json
var registryABI []byte

// Backend is what the client needs from a chain connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client is a Ledger backed by a JSON-RPC node.
type Client struct {
	backend  Backend
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
	logger   zerolog.Logger
}

// Dial connects to rpcURL and binds the registry at address.
func Dial(ctx context.Context, rpcURL string, address common.Address, logger zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return NewClient(eth, address, logger)
}

// NewClient binds the registry at address over backend.
func NewClient(backend Backend, address common.Address, logger zerolog.Logger) (*Client, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}
	return &Client{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		abi:      parsed,
		address:  address,
		logger:   logger.With().Str("component", "ledger").Str("contract", address.Hex()).Logger(),
	}, nil
}

// ParseABI returns the registry contract ABI.
func ParseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(registryABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse registry ABI: %w", err)
	}
	return parsed, nil
}

// Address returns the bound contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// Ping checks the node is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.backend.HeaderByNumber(ctx, nil)
	return err
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

// Agent fetches one agent by id.
func (c *Client) Agent(ctx context.Context, id uint64) (*models.Agent, error) {
	idArg, err := idWord(id)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, "getAgent", idArg)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, fmt.Errorf("%w: #%d: %s", ErrAgentNotFound, id, reason)
		}
		return nil, fmt.Errorf("getAgent %d: %w", id, err)
	}
	t := *abi.ConvertType(out[0], new(agentTuple)).(*agentTuple)
	if t.Id == nil || t.Id.Sign() == 0 {
		return nil, fmt.Errorf("%w: #%d", ErrAgentNotFound, id)
	}
	agent := t.model()
	return &agent, nil
}

// Agents fetches every registered agent.
func (c *Client) Agents(ctx context.Context) ([]models.Agent, error) {
	out, err := c.call(ctx, "getAgents")
	if err != nil {
		return nil, fmt.Errorf("getAgents: %w", err)
	}
	tuples := *abi.ConvertType(out[0], new([]agentTuple)).(*[]agentTuple)
	agents := make([]models.Agent, 0, len(tuples))
	for _, t := range tuples {
		agents = append(agents, t.model())
	}
	return agents, nil
}

// Rental fetches the rental slot of an agent.
func (c *Client) Rental(ctx context.Context, id uint64) (*models.Rental, error) {
	idArg, err := idWord(id)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, "getRental", idArg)
	if err != nil {
		return nil, fmt.Errorf("getRental %d: %w", id, err)
	}
	t := *abi.ConvertType(out[0], new(rentalTuple)).(*rentalTuple)
	rental := t.model()
	return &rental, nil
}

// IsRented asks the contract whether the agent has an open rental.
func (c *Client) IsRented(ctx context.Context, id uint64) (bool, error) {
	idArg, err := idWord(id)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, "isRented", idArg)
	if err != nil {
		return false, fmt.Errorf("isRented %d: %w", id, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// TimeRemaining returns the seconds left on the agent's rental.
func (c *Client) TimeRemaining(ctx context.Context, id uint64) (time.Duration, error) {
	idArg, err := idWord(id)
	if err != nil {
		return 0, err
	}
	out, err := c.call(ctx, "rentalTimeRemaining", idArg)
	if err != nil {
		return 0, fmt.Errorf("rentalTimeRemaining %d: %w", id, err)
	}
	secs := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return secondsDuration(secs), nil
}

// Balance returns the withdrawable earnings of owner.
func (c *Client) Balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, "balances", owner)
	if err != nil {
		return nil, fmt.Errorf("balances %s: %w", owner.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Submit signs and sends call. A revert detected while estimating gas is
// the contract refusing the call and is returned as a *SettlementError.
func (c *Client) Submit(ctx context.Context, auth *bind.TransactOpts, call Call) (*types.Transaction, error) {
	opts := *auth
	opts.Context = ctx
	opts.Value = call.Value

	tx, err := c.contract.Transact(&opts, call.Method, call.Args...)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &SettlementError{Method: call.Method, Reason: reason}
		}
		return nil, fmt.Errorf("submit %s: %w", call.Method, err)
	}

	c.logger.Info().
		Str("method", call.Method).
		Str("tx", tx.Hash().Hex()).
		Uint64("agent_id", call.AgentID).
		Msg("transaction submitted")
	return tx, nil
}

// Wait blocks until tx is mined. A failed receipt becomes a
// *SettlementError with the revert reason when the node can replay it.
func (c *Client) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return receipt, nil
	}

	method := "transaction"
	if m, err := c.abi.MethodById(tx.Data()); err == nil {
		method = m.Name
	}
	return receipt, &SettlementError{
		Method: method,
		TxHash: tx.Hash(),
		Reason: c.replayReason(ctx, tx, receipt),
	}
}

// replayReason re-executes a failed transaction at its block to recover the
// revert message.
func (c *Client) replayReason(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) string {
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return "transaction reverted"
	}
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	if _, err := c.backend.CallContract(ctx, msg, receipt.BlockNumber); err != nil {
		if reason, ok := revertReason(err); ok {
			return reason
		}
	}
	return "transaction reverted"
}

// revertReason extracts the contract's refusal from an RPC error.
func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if reason, err := abi.UnpackRevert(common.FromHex(hexData)); err == nil {
				return reason, true
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		reason := strings.TrimLeft(strings.TrimPrefix(msg[i:], "execution reverted"), ": ")
		if reason == "" {
			reason = "execution reverted"
		}
		return reason, true
	}
	if strings.Contains(msg, "insufficient funds") {
		return msg, true
	}
	return "", false
}
