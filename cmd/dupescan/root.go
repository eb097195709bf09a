package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	internal "github.com/ZanzyTHEbar/dupescan/dupe"
	"github.com/ZanzyTHEbar/dupescan/dupe/cleanup"
	"github.com/ZanzyTHEbar/dupescan/dupe/config"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"
	"github.com/ZanzyTHEbar/dupescan/dupe/report"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dupescan [basedir]",
	Short: "Parallel duplicate file finder",
	Long: `Find files with identical content under a directory.

Files are first grouped by size, then by a cheap partial hash, and finally
confirmed with a full BLAKE2b hash of every remaining candidate. With --quick
the last step is skipped and results may contain false duplicates.

Examples:
  dupescan ~/Pictures                         # Report duplicates of 4 MB to 4 GB
  dupescan --minsize 0 --maxsize 100 .        # Small files too
  dupescan --delete --dry-run ~/Downloads     # Preview removals
  dupescan --json-out dupes.json /srv/media   # Export groups`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScan,
}

func init() {
	rootCmd.Flags().String("config", "", "Config file (default searches ., /etc/dupescan and ~/.config/dupescan)")
	rootCmd.Flags().Bool("list", false, "Print every duplicate group")
	rootCmd.Flags().Int("top-dirs", 5, "Show the directories with the most reclaimable space (0 to hide)")
	rootCmd.Flags().StringSlice("dir", nil, "Report duplicate totals for these directories and their subtrees")
	config.RegisterFlags(rootCmd.Flags())
}

func runScan(cmd *cobra.Command, args []string) error {
	term := newTerminal(os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		term.Error("failed to load configuration", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		term.Error("invalid configuration", err)
		return err
	}

	zl, closer, err := internal.NewLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		term.Error("failed to set up logging", err)
		return err
	}
	defer closer.Close()
	logger := common.NewZerologLogger(zl)

	baseDir := "."
	if len(args) == 1 {
		baseDir = args[0]
	}
	root, err := common.NewValidationUtils().ValidateRoot(baseDir)
	if err != nil {
		logger.Error("Invalid directory", "path", baseDir, "error", err)
		term.Error("Invalid directory", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := newBarReporter(cmd.ErrOrStderr())
	events := make(chan types.ProgressEvent, 64)
	drained := bar.follow(events)
	start := time.Now()
	groups, err := filesystem.FindDuplicates(ctx, cfg.DedupeOptions(root), logger, types.ProgressChannel(events))
	elapsed := time.Since(start)
	close(events)
	<-drained
	bar.Finish()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			term.Warning("Scan interrupted")
		} else {
			term.Error("Scan failed", err)
		}
		return err
	}

	printSummary(term, groups, elapsed)
	if list, _ := cmd.Flags().GetBool("list"); list {
		printGroups(term, groups)
	}
	rollup := report.NewDirectoryRollup(groups)
	if n, _ := cmd.Flags().GetInt("top-dirs"); n > 0 && len(groups) > 0 {
		printTopDirs(term, rollup.Top(n))
	}
	if dirs, _ := cmd.Flags().GetStringSlice("dir"); len(dirs) > 0 {
		printDirTotals(term, rollup, dirs)
	}

	if cfg.Delete.Enabled && len(groups) > 0 {
		policy := cleanup.KeepFirst
		if cfg.Delete.Interactive {
			policy = cleanup.Interactive
		}
		deleter := cleanup.NewDeleter(logger, term)
		res, err := deleter.Run(ctx, groups, cleanup.Options{
			Policy: policy,
			DryRun: cfg.Delete.DryRun,
			Force:  cfg.Delete.Force,
		})
		if err != nil {
			term.Error("Deletion stopped", err)
			return err
		}
		printDeletion(term, res, cfg.Delete.DryRun)
	}

	// export failures are already logged and do not fail the run
	_ = report.Export(groups, cfg.Output.JSON, cfg.Output.CSV, logger)
	return nil
}

func printSummary(term *terminal, groups types.DuplicateGroups, elapsed time.Duration) {
	s := report.Summarize(groups)
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	term.Output("")
	term.Output(cyan("Scan Summary:"))
	term.Output(fmt.Sprintf("   • %d duplicate groups detected", s.Groups))
	term.Output(fmt.Sprintf("   • %d duplicate files in total", s.Files))
	term.Output(fmt.Sprintf("   • %s of space used by duplicates", humanize.IBytes(s.TotalBytes)))
	term.Output(fmt.Sprintf("   • %s can be reclaimed", green(humanize.IBytes(s.ReclaimableBytes))))
	if s.Groups == 0 {
		term.Output("   • No duplicate files found in the scanned directory.")
	}
	term.Output(fmt.Sprintf("   • Finished in %s", common.NewTimeUtils().FormatDuration(elapsed)))
}

func printGroups(term *terminal, groups types.DuplicateGroups) {
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, key := range groups.Keys() {
		digest := key.Digest
		if len(digest) > 8 {
			digest = digest[:8]
		}
		term.Output("")
		term.Output(fmt.Sprintf("%s  %s  (%d files)", yellow(humanize.IBytes(key.Size)), digest, len(groups[key])))
		for _, path := range groups[key] {
			term.Output("    " + path)
		}
	}
}

func printTopDirs(term *terminal, dirs []report.DirStats) {
	term.Output("")
	term.Output(color.New(color.FgCyan, color.Bold).Sprint("Top directories by reclaimable space:"))
	for _, d := range dirs {
		term.Output(fmt.Sprintf("   %10s  %s (%d files)", humanize.IBytes(d.Reclaimable), d.Dir, d.Files))
	}
}

func printDirTotals(term *terminal, rollup *report.DirectoryRollup, dirs []string) {
	pu := common.NewPathUtils()
	term.Output("")
	term.Output(color.New(color.FgCyan, color.Bold).Sprint("Directory totals:"))
	for _, dir := range dirs {
		abs := pu.NormalizePath(dir)
		here, _ := rollup.Get(abs)
		tree := rollup.Under(abs)
		term.Output(fmt.Sprintf("   %s: %d duplicate files here, %d including subdirectories, %s reclaimable",
			tree.Dir, here.Files, tree.Files, humanize.IBytes(tree.Reclaimable)))
	}
}

func printDeletion(term *terminal, res *cleanup.Result, dryRun bool) {
	if res.Cancelled {
		return
	}
	term.Output("")
	if dryRun {
		term.Output(color.YellowString("DRY RUN: would reclaim %s", humanize.IBytes(res.Reclaimed)))
		return
	}
	term.Output(fmt.Sprintf("Deleted %d files, reclaimed %s", len(res.Deleted), humanize.IBytes(res.Reclaimed)))
	if len(res.Failed) > 0 {
		term.Warning(fmt.Sprintf("%d files could not be deleted", len(res.Failed)))
	}
	if res.Skipped > 0 {
		term.Output(fmt.Sprintf("Skipped %d groups", res.Skipped))
	}
}
