package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/roastery/cmd/roastery/output"
	"github.com/marshallshelly/roastery/cmd/roastery/tui"
	"github.com/marshallshelly/roastery/internal/datamigrate"
)

var force bool

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Run named data migrations",
	Long: `Data migrations reshape or backfill rows in place, for example converting
legacy plain-text columns to translation JSON. Each runs in one transaction
and is recorded in data_migrations so it runs once.`,
}

var dataListCmd = &cobra.Command{
	Use:   "list",
	Short: "List data migrations and whether they have run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDataList(cmd)
	},
}

var dataRunCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Run a data migration",
	Long: `Run one data migration by name, or every pending one with --all.

Examples:
  roastery data run translations-json --dry-run   # Report rows that would change
  roastery data run --all
  roastery data run roaster-ratings --force       # Run again although applied
  roastery data run -i                            # Pick interactively`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDataRun(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataListCmd, dataRunCmd)

	dataRunCmd.Flags().BoolVar(&all, "all", false, "Run every pending data migration")
	dataRunCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run and roll back, reporting affected rows")
	dataRunCmd.Flags().BoolVar(&force, "force", false, "Run even if already applied")
	dataRunCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode")
}

func runDataList(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	infos, err := datamigrate.NewRunner(db, nil, cfg.Locale.Default).Status(ctx)
	if err != nil {
		return err
	}
	out := printer(cmd)
	if jsonOutput {
		return out.JSON(infos)
	}
	rows := make([][]string, len(infos))
	for i, info := range infos {
		status, at, affected := "pending", "-", "-"
		if info.AppliedAt != nil {
			status = "applied"
			at = info.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			affected = strconv.FormatInt(info.RowsAffected, 10)
		}
		rows[i] = []string{info.Name, output.StatusIcon(status) + " " + status, at, affected, info.Description}
	}
	out.Table([]string{"NAME", "STATUS", "APPLIED AT", "ROWS", "DESCRIPTION"}, rows)
	return nil
}

func runDataRun(cmd *cobra.Command, args []string) error {
	switch {
	case interactive && len(args) > 0:
		return errors.New("--interactive does not take a name")
	case all && len(args) > 0:
		return errors.New("--all does not take a name")
	case !interactive && !all && len(args) == 0:
		return errors.New("name a data migration, or pass --all or --interactive")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cliLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	runner := datamigrate.NewRunner(db, logger, cfg.Locale.Default)

	if interactive {
		return tui.Run(ctx, &tui.DataSource{Runner: runner, DryRun: dryRun, Force: force})
	}

	var results []datamigrate.Result
	if all {
		results, err = runner.RunAll(ctx, dryRun)
	} else {
		var res datamigrate.Result
		res, err = runner.Run(ctx, args[0], datamigrate.Options{DryRun: dryRun, Force: force})
		results = append(results, res)
	}
	if err != nil {
		if errors.Is(err, datamigrate.ErrUnknown) {
			return fmt.Errorf("%w (see `roastery data list`)", err)
		}
		return err
	}

	out := printer(cmd)
	if jsonOutput {
		return out.JSON(results)
	}
	for _, res := range results {
		if res.Skipped {
			out.Muted("%s", tui.Summary(res))
			continue
		}
		out.Success("%s", tui.Summary(res))
	}
	return nil
}
