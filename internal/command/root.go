package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "marketctl"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// NewRootCmd builds the command tree using collaborators from configuration.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, Env{})
}

func newRootCmd(version string, env Env) *cobra.Command {
	a := &app{env: env}

	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "marketctl - browse, rent and list AI agents",
		Long:          "marketctl talks to the agent registry and the upload gateway to browse, rent and register AI agents.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().StringVar(&a.cfgPath, "config", os.Getenv("MARKET_CONFIG"), "YAML config file with network profiles")
	cmd.PersistentFlags().StringVar(&a.keyPath, "key", "", "wallet key file (default from config)")
	cmd.PersistentFlags().StringVar(&a.gatewayURL, "gateway", "", "upload gateway URL (default from config)")
	cmd.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&a.assumeYes, "yes", "y", false, "approve transactions without prompting")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newAgentsCmd(a),
		newAgentCmd(a),
		newWatchCmd(a),
		newQuoteCmd(a),
		newBalanceCmd(a),
		newAccountCmd(a),
		newRegisterCmd(a),
		newRentCmd(a),
		newExtendCmd(a),
		newSetPriceCmd(a),
		newSetBasePriceCmd(a),
		newSetAvailabilityCmd(a),
		newFinalizeCmd(a),
		newWithdrawCmd(a),
		newUploadImageCmd(a),
		newUploadsCmd(a),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd(Version).Execute()
}
