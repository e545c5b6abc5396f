package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ipfs"
)

func newUploadImageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-image <file>",
		Short: "Pin an image through the upload gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			resp, err := a.gateway().UploadFile(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Uploaded %s (%s, %s)\n", filepath.Base(args[0]), resp.MimeType, humanize.Bytes(uint64(resp.Size)))
			fmt.Fprintf(w, "  URI: %s\n", ipfs.URI(resp.CID))
			fmt.Fprintf(w, "  URL: %s\n", resp.URL)
			return nil
		},
	}
}
