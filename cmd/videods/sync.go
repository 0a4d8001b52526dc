package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/config"
	miniostorage "github.com/fiapx/fiapx-video-datasets/internal/infra/minio"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var bucket, prefix, dest string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download a dataset tree from object storage",
		Long:  `Copies every object under --prefix into --dest. Credentials and endpoint come from the MINIO_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cfg.MinIODatasetBucket
			}
			storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
				Endpoint:      cfg.MinIOEndpoint,
				AccessKey:     cfg.MinIOAccessKey,
				SecretKey:     cfg.MinIOSecretKey,
				UseSSL:        cfg.MinIOUseSSL,
				DatasetBucket: bucket,
			}, root.log)
			if err != nil {
				return err
			}
			return syncDataset(cmd.Context(), storage, prefix, dest, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Dataset bucket (default $MINIO_DATASET_BUCKET)")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Object key prefix of the dataset root")
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "Local destination directory")
	return cmd
}

// syncDataset mirrors prefix into dest, drawing progress on progressOut.
func syncDataset(ctx context.Context, mirror port.DatasetMirror, prefix, dest string, out, progressOut io.Writer) error {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription("syncing "+prefix),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	n, err := mirror.SyncPrefix(ctx, prefix, dest, func(_ string, size int64) {
		_ = bar.Add64(size)
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("sync %s: %w", prefix, err)
	}
	fmt.Fprintf(out, "fetched %d files into %s\n", n, dest)
	return nil
}
