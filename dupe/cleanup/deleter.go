package cleanup

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"
	"github.com/ZanzyTHEbar/dupescan/dupe/ports"
)

// Policy selects which files of a group are removed
type Policy int

const (
	// KeepFirst removes every path but the first of each group
	KeepFirst Policy = iota
	// Interactive asks the user per group
	Interactive
)

func (p Policy) String() string {
	switch p {
	case KeepFirst:
		return "keep-first"
	case Interactive:
		return "interactive"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Prompts shown to the user
const (
	ConfirmPrompt = "Confirm deletion? (y/N): "
	ChoicePrompt  = "Delete files (comma-separated), 'a' for all but first, 's' to skip: "
)

// Options controls a deletion run
type Options struct {
	Policy Policy
	DryRun bool
	// Force skips the up-front confirmation. Dry runs never ask for it.
	Force bool
}

// Result reports what a run did
type Result struct {
	Deleted   []string
	Failed    map[string]error
	Skipped   int
	Reclaimed uint64
	Cancelled bool
}

// Deleter removes duplicate files
type Deleter struct {
	logger     common.Logger
	interactor ports.Interactor
	remove     func(string) error
}

// NewDeleter creates a deleter. interactor is required unless every run uses
// the KeepFirst policy with Force or DryRun.
func NewDeleter(logger common.Logger, interactor ports.Interactor) *Deleter {
	return &Deleter{
		logger:     common.OrNop(logger),
		interactor: interactor,
		remove:     os.Remove,
	}
}

// Run deletes files from groups according to opts. Groups are visited by
// ascending size, then digest. A failed removal is logged and recorded; it
// never stops the run.
func (d *Deleter) Run(ctx context.Context, groups types.DuplicateGroups, opts Options) (*Result, error) {
	res := &Result{Failed: make(map[string]error)}
	confirm := !opts.Force && !opts.DryRun
	if (confirm || opts.Policy == Interactive) && d.interactor == nil {
		return nil, fmt.Errorf("%s deletion requires an interactor", opts.Policy)
	}

	if confirm {
		answer, err := d.interactor.Prompt(ConfirmPrompt)
		if err != nil {
			return nil, fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			d.logger.Info("Deletion cancelled.")
			res.Cancelled = true
			return res, nil
		}
	}

	vu := common.NewValidationUtils()
	for _, key := range sortedKeys(groups) {
		if err := vu.ValidateContextCancellation(ctx); err != nil {
			return res, err
		}
		paths := groups[key]

		targets := paths[1:]
		if opts.Policy == Interactive {
			picked, ok, err := d.choose(key, paths)
			if err != nil {
				return res, err
			}
			if !ok {
				res.Skipped++
				continue
			}
			targets = picked
		}
		d.delete(res, key.Size, targets, opts.DryRun)
	}
	return res, nil
}

func (d *Deleter) delete(res *Result, size uint64, targets []string, dryRun bool) {
	for _, path := range targets {
		if dryRun {
			d.logger.Info("[DRY-RUN] Would delete", "path", path)
			res.Reclaimed += size
			continue
		}
		if err := d.remove(path); err != nil {
			d.logger.Error("Failed to delete", "path", path, "error", err)
			res.Failed[path] = err
			continue
		}
		d.logger.Info("Deleted", "path", path)
		res.Deleted = append(res.Deleted, path)
		res.Reclaimed += size
	}
}

// choose lists one group and parses the reply. ok is false when the group is
// skipped, either on request or because the reply did not parse.
func (d *Deleter) choose(key types.HashKey, paths []string) ([]string, bool, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "\nDuplicate group (Size: %d, Hash: %s):", key.Size, shortHash(key.Digest))
	for i, p := range paths {
		fmt.Fprintf(&b, "\n  [%d] %s", i, p)
	}
	d.interactor.Output(b.String())

	answer, err := d.interactor.Prompt(ChoicePrompt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read selection: %w", err)
	}
	targets, ok := ParseSelection(answer, paths)
	if !ok && strings.ToLower(strings.TrimSpace(answer)) != "s" {
		d.interactor.Warning(fmt.Sprintf("Skipping group, could not parse selection %q", strings.TrimSpace(answer)))
	}
	return targets, ok, nil
}

// ParseSelection interprets an interactive reply: "a" selects all but the first
// path, "s" skips, otherwise a comma-separated list of indices. Repeated indices
// are selected once.
func ParseSelection(answer string, paths []string) ([]string, bool) {
	choice := strings.ToLower(strings.TrimSpace(answer))
	switch choice {
	case "s":
		return nil, false
	case "a":
		return paths[1:], true
	}

	var picked []int
	for _, field := range strings.Split(choice, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || i < 0 || i >= len(paths) {
			return nil, false
		}
		if !slices.Contains(picked, i) {
			picked = append(picked, i)
		}
	}

	targets := make([]string, len(picked))
	for j, i := range picked {
		targets[j] = paths[i]
	}
	return targets, true
}

func sortedKeys(groups types.DuplicateGroups) []types.HashKey {
	keys := make([]types.HashKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b types.HashKey) int {
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		}
		return strings.Compare(a.Digest, b.Digest)
	})
	return keys
}

func shortHash(digest string) string {
	if len(digest) > 8 {
		return digest[:8]
	}
	return digest
}
