package command

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/flow"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

// submit runs one flow action and prints its result.
func (a *app) submit(cmd *cobra.Command, run func(e *flow.Engine) (*flow.Result, error)) error {
	e, err := a.engine(cmd)
	if err != nil {
		return err
	}
	res, err := run(e)
	if res != nil {
		if rerr := renderResult(cmd.OutOrStdout(), res, a.jsonMode); rerr != nil {
			return rerr
		}
	}
	return err
}

func parseAmountArg(s, what string) (*big.Int, error) {
	v, err := units.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return v, nil
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		file      string
		image     string
		price     string
		basePrice string
		doc       models.AgentMetadata
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish agent metadata and list the agent",
		Long: `Publishes the agent document through the upload gateway and registers it
on the registry. Prices are given in display tokens, e.g. --price 0.0001.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta := models.AgentMetadata{}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &meta); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			}
			mergeMetadata(cmd, &meta, &doc)

			pps, err := parseAmountArg(price, "--price")
			if err != nil {
				return err
			}
			base, err := parseAmountArg(basePrice, "--base-price")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if image != "" {
				f, err := os.Open(image)
				if err != nil {
					return err
				}
				up, err := a.gateway().UploadFile(ctx, filepath.Base(image), f)
				f.Close()
				if err != nil {
					return fmt.Errorf("upload image: %w", err)
				}
				uri := ipfs.URI(up.CID)
				meta.Image = &uri
				a.logger.Debug().Str("cid", up.CID).Msg("image uploaded")
			}

			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.Register(ctx, flow.RegisterInput{
					Metadata:       meta,
					PricePerSecond: pps,
					BasePrice:      base,
				})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&file, "file", "", "JSON metadata document; flags override its fields")
	f.StringVar(&doc.Name, "name", "", "agent name")
	f.StringVar(&doc.Description, "description", "", "what the agent does")
	f.StringVar(&doc.Category, "category", "", "one of: Conversational, Analytics, Creative, Finance, Healthcare, Education, Gaming, Other")
	f.StringVar(&doc.Endpoint, "endpoint", "", "URL renters call")
	f.StringSliceVar(&doc.Tags, "tags", nil, "comma separated tags")
	f.StringSliceVar(&doc.Metadata.Capabilities, "capabilities", nil, "comma separated capabilities")
	f.StringSliceVar(&doc.Metadata.Requirements, "requirements", nil, "comma separated requirements")
	f.StringVar(&doc.Metadata.Version, "version", "", "agent version")
	f.StringVar(&doc.Metadata.Author, "author", "", "agent author")
	f.StringVar(&image, "image", "", "image file to upload and reference")
	f.StringVar(&price, "price", "0", "price per second in tokens")
	f.StringVar(&basePrice, "base-price", "0", "flat fee per rental in tokens")
	return cmd
}

// mergeMetadata copies every flag the user set from flags onto dst.
func mergeMetadata(cmd *cobra.Command, dst, flags *models.AgentMetadata) {
	set := cmd.Flags().Changed
	if set("name") {
		dst.Name = flags.Name
	}
	if set("description") {
		dst.Description = flags.Description
	}
	if set("category") {
		dst.Category = flags.Category
	}
	if set("endpoint") {
		dst.Endpoint = flags.Endpoint
	}
	if set("tags") {
		dst.Tags = flags.Tags
	}
	if set("capabilities") {
		dst.Metadata.Capabilities = flags.Metadata.Capabilities
	}
	if set("requirements") {
		dst.Metadata.Requirements = flags.Metadata.Requirements
	}
	if set("version") {
		dst.Metadata.Version = flags.Metadata.Version
	}
	if set("author") {
		dst.Metadata.Author = flags.Metadata.Author
	}
}

func newRentCmd(a *app) *cobra.Command {
	var duration string

	cmd := &cobra.Command{
		Use:   "rent <id>",
		Short: "Rent an agent for a duration",
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
			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.Rent(cmd.Context(), flow.RentInput{AgentID: id, DurationSeconds: secs})
			})
		},
	}

	cmd.Flags().StringVarP(&duration, "duration", "d", "1h", "rental length, e.g. 3600, 90m, 2h, 1d")
	return cmd
}

func newExtendCmd(a *app) *cobra.Command {
	var duration string

	cmd := &cobra.Command{
		Use:   "extend <id>",
		Short: "Extend your active rental",
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
			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.Extend(cmd.Context(), flow.ExtendInput{AgentID: id, ExtraSeconds: secs})
			})
		},
	}

	cmd.Flags().StringVarP(&duration, "duration", "d", "1h", "extra time, e.g. 600, 30m, 1h")
	return cmd
}

func newSetPriceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-price <id> <amount>",
		Short: "Change the per-second price of your agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAgentID(args[0])
			if err != nil {
				return err
			}
			v, err := parseAmountArg(args[1], "price")
			if err != nil {
				return err
			}
			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.SetPrice(cmd.Context(), id, v)
			})
		},
	}
}

func newSetBasePriceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-base-price <id> <amount>",
		Short: "Change the flat rental fee of your agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAgentID(args[0])
			if err != nil {
				return err
			}
			v, err := parseAmountArg(args[1], "base price")
			if err != nil {
				return err
			}
			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.SetBasePrice(cmd.Context(), id, v)
			})
		},
	}
}

func newSetAvailabilityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-availability <id> <true|false>",
		Short: "List or delist your agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAgentID(args[0])
			if err != nil {
				return err
			}
			available, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("availability must be true or false, got %q", args[1])
			}
			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.SetAvailability(cmd.Context(), id, available)
			})
		},
	}
}

func newFinalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <id>",
		Short: "Close an expired rental",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAgentID(args[0])
			if err != nil {
				return err
			}
			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.Finalize(cmd.Context(), id)
			})
		},
	}
}

func newWithdrawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw your accumulated earnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd, func(e *flow.Engine) (*flow.Result, error) {
				return e.Withdraw(cmd.Context())
			})
		},
	}
}
