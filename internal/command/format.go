package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/flow"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// renderAgents prints one row per agent.
func renderAgents(w io.Writer, views []models.AgentView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No agents")
		return
	}
	table := newTable(w, "ID", "STATUS", "PRICE/SEC", "BASE", "REMAINING", "OWNER", "CONTENT")
	for _, v := range views {
		table.Append([]string{
			strconv.FormatUint(v.ID, 10),
			string(v.Status),
			v.PricePerSecond,
			v.BasePrice,
			remaining(v.TimeRemainingSecs),
			shortAddress(v.Owner),
			v.ContentRef,
		})
	}
	table.Render()
}

// renderAgent prints one agent in detail.
func renderAgent(w io.Writer, v models.AgentView, now time.Time) {
	fmt.Fprintf(w, "Agent #%d\n", v.ID)
	fmt.Fprintf(w, "  Status:     %s\n", v.Status)
	fmt.Fprintf(w, "  Owner:      %s\n", v.Owner)
	fmt.Fprintf(w, "  Price/sec:  %s\n", v.PricePerSecond)
	fmt.Fprintf(w, "  Base price: %s\n", v.BasePrice)
	fmt.Fprintf(w, "  Score:      %s\n", v.Score)
	fmt.Fprintf(w, "  Content:    %s\n", v.ContentRef)
	if !v.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Listed:     %s\n", humanize.RelTime(v.CreatedAt, now, "ago", "from now"))
	}
	if v.Status == models.StatusRented {
		fmt.Fprintf(w, "  Renter:     %s\n", v.Renter)
		fmt.Fprintf(w, "  Remaining:  %s\n", remaining(v.TimeRemainingSecs))
	}
	if m := v.Metadata; m != nil {
		fmt.Fprintf(w, "  Name:       %s\n", m.Name)
		fmt.Fprintf(w, "  Category:   %s\n", m.Category)
		fmt.Fprintf(w, "  Endpoint:   %s\n", m.Endpoint)
		if m.Description != "" {
			fmt.Fprintf(w, "  About:      %s\n", m.Description)
		}
		if len(m.Tags) > 0 {
			fmt.Fprintf(w, "  Tags:       %s\n", strings.Join(m.Tags, ", "))
		}
	}
}

// remaining formats a countdown such as "1h 5m 3s".
func remaining(secs int64) string {
	if secs <= 0 {
		return "-"
	}
	d := time.Duration(secs) * time.Second
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	s := int64(d%time.Minute) / int64(time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func shortAddress(addr string) string {
	if len(addr) < 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

type resultOutput struct {
	FlowID     string `json:"flowId"`
	Action     string `json:"action"`
	State      string `json:"state"`
	FailedIn   string `json:"failedIn,omitempty"`
	AgentID    uint64 `json:"agentId,omitempty"`
	ContentRef string `json:"contentRef,omitempty"`
	Cost       string `json:"cost,omitempty"`
	TxHash     string `json:"txHash,omitempty"`
	Block      uint64 `json:"block,omitempty"`
	GasUsed    uint64 `json:"gasUsed,omitempty"`
	Error      string `json:"error,omitempty"`
}

func toResultOutput(res *flow.Result) resultOutput {
	out := resultOutput{
		FlowID:     res.FlowID,
		Action:     res.Action,
		State:      string(res.State),
		FailedIn:   string(res.FailedIn),
		AgentID:    res.AgentID,
		ContentRef: res.ContentRef,
	}
	if res.Cost != nil {
		out.Cost = units.FormatAmount(res.Cost)
	}
	if res.TxHash != (common.Hash{}) {
		out.TxHash = res.TxHash.Hex()
	}
	if res.Receipt != nil {
		if res.Receipt.BlockNumber != nil {
			out.Block = res.Receipt.BlockNumber.Uint64()
		}
		out.GasUsed = res.Receipt.GasUsed
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// renderResult prints a finished flow.
func renderResult(w io.Writer, res *flow.Result, jsonMode bool) error {
	out := toResultOutput(res)
	if jsonMode {
		return writeJSON(w, out)
	}
	if res.State != flow.StateSettled {
		fmt.Fprintf(w, "%s failed while %s\n", out.Action, strings.ReplaceAll(out.FailedIn, "_", " "))
		return nil
	}
	fmt.Fprintf(w, "%s settled\n", out.Action)
	if out.ContentRef != "" {
		fmt.Fprintf(w, "  Content:  %s\n", ipfs.URI(ipfs.CID(out.ContentRef)))
	}
	if out.Cost != "" {
		fmt.Fprintf(w, "  Paid:     %s\n", out.Cost)
	}
	fmt.Fprintf(w, "  Tx:       %s\n", out.TxHash)
	if out.Block != 0 {
		fmt.Fprintf(w, "  Block:    %s\n", humanize.Comma(int64(out.Block)))
	}
	if out.GasUsed != 0 {
		fmt.Fprintf(w, "  Gas used: %s\n", humanize.Comma(int64(out.GasUsed)))
	}
	return nil
}
