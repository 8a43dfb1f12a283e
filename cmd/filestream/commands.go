package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/filestream/fileio"
	"github.com/kbukum/filestream/item"
	"github.com/kbukum/filestream/version"
)

func newLister(env *runEnv) *fileio.Lister {
	src := env.cfg.Source
	return fileio.NewLister(src.BaseURI, fileio.ListerOptions{
		Patterns: src.Patterns,
		Storage:  src.Storage,
		Strict:   src.Strict,
	}, env.log).WithMetrics(env.metrics)
}

func newListCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [base-uri]",
		Short: "Print the URIs matching the patterns under a base URI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, args, f)
			if err != nil {
				return err
			}
			defer env.close()
			return run[item.Item[string]](cmd.Context(), env, newLister(env), cmd.OutOrStdout(), "list")
		},
	}
}

func newReadCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [base-uri]",
		Short: "Print the full content of every matching file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, args, f)
			if err != nil {
				return err
			}
			defer env.close()
			if f.binary {
				r, err := fileio.NewBulkReader[[]byte](newLister(env), env.cfg.openOptions(), env.log)
				if err != nil {
					return err
				}
				return run[item.Item[[]byte]](cmd.Context(), env, r.WithMetrics(env.metrics), cmd.OutOrStdout(), "read")
			}
			r, err := fileio.NewBulkReader[string](newLister(env), env.cfg.openOptions(), env.log)
			if err != nil {
				return err
			}
			return run[item.Item[string]](cmd.Context(), env, r.WithMetrics(env.metrics), cmd.OutOrStdout(), "read")
		},
	}
	cmd.Flags().BoolVar(&f.binary, "binary", false, "emit raw bytes (base64 in JSON) instead of decoded text")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "stop after n files (0 = no limit)")
	return cmd
}

func newLinesCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lines [base-uri]",
		Short: "Print every line of every matching file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, args, f)
			if err != nil {
				return err
			}
			defer env.close()
			s, err := fileio.NewLineStreamer(newLister(env), env.cfg.openOptions(), env.log)
			if err != nil {
				return err
			}
			return run[item.Item[string]](cmd.Context(), env, s.WithMetrics(env.metrics), cmd.OutOrStdout(), "lines")
		},
	}
	cmd.Flags().IntVar(&f.limit, "limit", 0, "stop after n lines (0 = no limit)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Get())
			return err
		},
	}
}
