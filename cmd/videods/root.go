package main

import (
	"github.com/fiapx/fiapx-video-datasets/internal/labelset"
	"github.com/fiapx/fiapx-video-datasets/internal/recordset"
	"github.com/fiapx/fiapx-video-datasets/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	logLevel string
	log      *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "videods",
		Short:         "Video dataset tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level, one of [debug, info, warn, error]")

	cmd.AddCommand(newRecordsCmd(opts), newSampleCmd(opts), newSyncCmd(opts))
	return cmd
}

// metadataFlags are shared by every command reading a metadata file.
type metadataFlags struct {
	metafile      string
	layout        string
	separator     string
	extension     string
	categories    string
	lastWriteWins bool
}

func (m *metadataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&m.metafile, "metafile", "m", "", "Metadata file, one record per line")
	cmd.Flags().StringVarP(&m.layout, "layout", "l", "path-label", "Record layout, one of [path-label, path-frames-label, multi-label]")
	cmd.Flags().StringVarP(&m.separator, "sep", "s", recordset.DefaultSeparator, "Field separator")
	cmd.Flags().StringVar(&m.extension, "ext", "", "Suffix appended to every record path, e.g. .mp4")
	cmd.Flags().StringVarP(&m.categories, "categories", "c", "", "Category file of token,code lines")
	cmd.Flags().BoolVar(&m.lastWriteWins, "last-write-wins", false, "Let later category lines override earlier ones")
}

func (m *metadataFlags) labelSet(log *zap.Logger) (*labelset.Categories, error) {
	if m.categories == "" {
		return nil, nil
	}
	opts := []labelset.Option{labelset.WithLogger(log)}
	if m.lastWriteWins {
		opts = append(opts, labelset.WithLastWriteWins())
	}
	return labelset.Load(m.categories, opts...)
}

func (m *metadataFlags) load(log *zap.Logger) (*recordset.RecordSet, error) {
	layout, err := recordset.ParseLayout(m.layout)
	if err != nil {
		return nil, err
	}
	opts := []recordset.Option{
		recordset.WithLayout(layout),
		recordset.WithSeparator(m.separator),
		recordset.WithExtension(m.extension),
	}
	cats, err := m.labelSet(log)
	if err != nil {
		return nil, err
	}
	if cats != nil {
		opts = append(opts, recordset.WithLabelSet(cats))
	}
	return recordset.Load(m.metafile, opts...)
}
