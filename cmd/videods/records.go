package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecordsCmd(root *rootOptions) *cobra.Command {
	var meta metadataFlags
	var echo bool

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Parse a metadata file and report its records",
		Long:  `Parses the metadata file with the given layout and prints the number of records. With --echo the records are written back in the same layout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := meta.load(root.log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if echo {
				_, err := rs.WriteTo(out)
				return err
			}
			fmt.Fprintf(out, "%s: %d records (%s)\n", rs.File(), rs.Len(), rs.Layout())
			return nil
		},
	}
	meta.register(cmd)
	cmd.Flags().BoolVar(&echo, "echo", false, "Write the parsed records back to stdout")
	_ = cmd.MarkFlagRequired("metafile")
	return cmd
}
