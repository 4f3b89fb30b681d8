package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/repeateval/repeat/internal/pkg/logger"
	"github.com/repeateval/repeat/internal/query"
	"github.com/repeateval/repeat/internal/table"
	"github.com/repeateval/repeat/internal/watch"
)

func tableCmd(a **app, use, short string, withMeasure bool, run func(ctx context.Context, a *app, q query.Query) (*table.Table, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := querySelectors(cmd)
			if err != nil {
				return err
			}
			ctx := logger.ContextWithQuery(cmd.Context(), use)
			t, err := run(ctx, *a, q)
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), (*a).format, t)
		},
	}
	addSelectorFlags(cmd, withMeasure)
	return cmd
}

func paramsCmd(a **app) *cobra.Command {
	return tableCmd(a, "params", "Print the parameter sets of registrations", false,
		func(ctx context.Context, a *app, q query.Query) (*table.Table, error) {
			return a.svc.GetParams(ctx, q)
		})
}

func averagesCmd(a **app) *cobra.Command {
	return tableCmd(a, "averages", "Print the averaged voxel-wise measures of target cases", false,
		func(ctx context.Context, a *app, q query.Query) (*table.Table, error) {
			return a.svc.ReadAverageMeasures(ctx, q)
		})
}

func measurementsCmd(a **app) *cobra.Command {
	return tableCmd(a, "measurements", "Print pairwise measurements", true,
		func(ctx context.Context, a *app, q query.Query) (*table.Table, error) {
			return a.svc.ReadMeasurements(ctx, q)
		})
}

func resultsCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Print one result table per measure",
		Long: `Print one result table per measure for the selected registrations.

Without --measure the configured default measures are read. Without --cfgid
every parameter set with a results directory is read. With --follow the
query is re-run whenever the store changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := querySelectors(cmd)
			if err != nil {
				return err
			}
			outDir, _ := cmd.Flags().GetString("out-dir")
			withParams, _ := cmd.Flags().GetBool("with-params")
			follow, _ := cmd.Flags().GetBool("follow")

			run := func(ctx context.Context) error {
				results, err := (*a).svc.ReadResults(ctx, q)
				if err != nil {
					return err
				}
				if withParams {
					for m, t := range results {
						if results[m], err = (*a).agg.SetParams(ctx, t, nil); err != nil {
							return err
						}
					}
				}
				return writeResults(cmd.OutOrStdout(), (*a).format, results, outDir)
			}
			ctx := logger.ContextWithQuery(cmd.Context(), "results")
			if follow || (*a).cfg.Watch.Enabled {
				return followStore(ctx, *a, run)
			}
			return run(ctx)
		},
	}
	addSelectorFlags(cmd, true)
	cmd.Flags().String("out-dir", "", "write <measure>.<format> files to this directory")
	cmd.Flags().Bool("with-params", false, "join the parameter columns of each row")
	cmd.Flags().Bool("follow", false, "re-run the query whenever the store changes")
	return cmd
}

// followStore runs the query, then re-runs it after every store change
// until interrupted. Every run starts from a purged fragment cache.
func followStore(ctx context.Context, a *app, run func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		return err
	}

	inv, err := watch.NewInvalidator(watch.Config{
		Root:     a.cfg.Store.Root,
		Dirs:     a.storage,
		Cache:    a.svc,
		Debounce: a.cfg.WatchDebounce(),
		Metrics:  a.metrics,
		Log:      a.log,
		OnChange: func(ctx context.Context, paths []string) {
			if err := run(ctx); err != nil {
				a.log.WithError(err).Error("Query failed after store change")
			}
		},
	})
	if err != nil {
		return err
	}
	if err := inv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func groupedCmd(a **app, use, short string, inGroup bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Labels are assigned to groups by the "Label Group: <name>" columns of the
dataset's label taxonomy. Every overlap measure is aggregated, plus any
measure named with --measure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := querySelectors(cmd)
			if err != nil {
				return err
			}
			outDir, _ := cmd.Flags().GetString("out-dir")
			ctx := logger.ContextWithQuery(cmd.Context(), use)

			results, err := (*a).svc.ReadResults(ctx, q)
			if err != nil {
				return err
			}
			measures := q.Measure.Values()
			var avg query.Results
			if inGroup {
				avg, err = (*a).agg.InGroupAverages(ctx, results, measures...)
			} else {
				avg, err = (*a).agg.GroupedAverages(ctx, results, measures...)
			}
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), (*a).format, avg, outDir)
		},
	}
	addSelectorFlags(cmd, true)
	cmd.Flags().String("out-dir", "", "write <measure>.<format> files to this directory")
	return cmd
}

func tgtIDsCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tgtids",
		Short: "List the target case ids with results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := readScalarFlags(cmd)
			ids, err := (*a).svc.ListTgtIDs(cmd.Context(), s.dataset, s.regid, s.cfgid)
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), (*a).format, ids)
		},
	}
	addScalarFlags(cmd, false, false)
	return cmd
}

func cfgIDsCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cfgids",
		Short: "List the parameter set ids with results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := readScalarFlags(cmd)
			ids, err := (*a).svc.ListCfgIDs(cmd.Context(), s.dataset, s.regid)
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), (*a).format, ids)
		},
	}
	addScalarFlags(cmd, false, false)
	cmd.Flags().MarkHidden("cfgid")
	return cmd
}

func srcIDsCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srcids",
		Short: "List the source case ids of one target case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := readScalarFlags(cmd)
			ids, err := (*a).svc.ReadSrcIDs(cmd.Context(), s.measure, s.dataset, s.regid, s.cfgid, s.tgtid)
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), (*a).format, ids)
		},
	}
	addScalarFlags(cmd, true, true)
	return cmd
}

func volumesCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "Print the segmentation label volumes of one target case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := readScalarFlags(cmd)
			voxel, _ := cmd.Flags().GetFloat64("voxel-volume")
			t, err := (*a).svc.ReadLabelVolumes(cmd.Context(), s.dataset, s.regid, s.cfgid, s.tgtid, voxel)
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), (*a).format, t)
		},
	}
	addScalarFlags(cmd, true, false)
	cmd.Flags().Float64("voxel-volume", 1, "volume of one voxel")
	return cmd
}
