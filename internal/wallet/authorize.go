package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

// Request describes a call awaiting the holder's approval.
type Request struct {
	Account common.Address
	Method  string
	AgentID uint64
	Value   *big.Int
	ChainID *big.Int
}

func (r Request) String() string {
	var b strings.Builder
	b.WriteString(r.Method)
	if r.AgentID != 0 {
		fmt.Fprintf(&b, " agent #%d", r.AgentID)
	}
	if r.Value != nil && r.Value.Sign() > 0 {
		fmt.Fprintf(&b, " paying %s", units.FormatAmount(r.Value))
	}
	fmt.Fprintf(&b, " from %s", r.Account.Hex())
	if r.ChainID != nil {
		fmt.Fprintf(&b, " on chain %s", r.ChainID)
	}
	return b.String()
}

// Authorizer approves or refuses a request before it is signed.
// Refusal returns an error wrapping ErrAuthorizationDenied.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, req Request) error

func (f AuthorizerFunc) Authorize(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// AutoApprove approves everything.
var AutoApprove Authorizer = AuthorizerFunc(func(context.Context, Request) error { return nil })

// PromptAuthorizer asks on a terminal. Anything but y or yes is a refusal.
type PromptAuthorizer struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptAuthorizer) Authorize(ctx context.Context, req Request) error {
	fmt.Fprintf(p.Out, "Confirm %s? [y/N] ", req)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.In).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.Out)
		return fmt.Errorf("%w: %v", ErrAuthorizationDenied, ctx.Err())
	case a := <-answer:
		if a == "y" || a == "yes" {
			return nil
		}
		return fmt.Errorf("%w: %s declined", ErrAuthorizationDenied, req.Method)
	}
}
