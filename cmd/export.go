// File: cmd/export.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/guidepost/internal/observability"
	"github.com/xkilldash9x/guidepost/internal/tour"
)

// now is swapped in tests for a fixed export timestamp.
var now = time.Now

func newExportCmd() *cobra.Command {
	var (
		tf  tourFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a tour as a self-contained script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			t, _, err := tf.load(cfg)
			if err != nil {
				return err
			}
			script, err := tour.Export(t, now())
			if err != nil {
				return err
			}
			if out == "" {
				out = tour.ExportFileName(t)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := os.WriteFile(out, script, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			observability.GetLogger().Info("Tour exported.", zap.String("tour_id", t.ID), zap.String("path", out))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: derived from the tour name)")
	return cmd
}

func newImportCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Recover a tour document from an exported script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("failed to read export: %w", err)
			}
			t, err := tour.Import(content)
			if err != nil {
				return err
			}
			doc, err := tour.Encode(t)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(append(doc, '\n'))
				return err
			}
			if err := os.WriteFile(out, doc, 0o644); err != nil {
				return fmt.Errorf("failed to write tour: %w", err)
			}
			observability.GetLogger().Info("Tour imported.", zap.String("tour_id", t.ID), zap.String("path", out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "exported script to read")
	cmd.Flags().StringVarP(&out, "out", "o", "", "tour file to write (default: stdout)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
