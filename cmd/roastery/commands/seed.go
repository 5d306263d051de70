package commands

import (
	"github.com/spf13/cobra"

	"github.com/marshallshelly/roastery/internal/seed"
	"github.com/marshallshelly/roastery/internal/store"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load countries, regions and specialties",
	Long: `Upsert reference data from a YAML file in one transaction. Without --file
the built-in data set is used. Running it again updates names in place.

Examples:
  roastery seed
  roastery seed --file ./data/nordics.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file (default: built-in data)")
}

func runSeed(cmd *cobra.Command) error {
	data, err := loadSeed()
	if err != nil {
		return err
	}
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

	var summary seed.Summary
	err = store.New(db).WithTx(ctx, func(tx *store.Store) error {
		summary, err = seed.Apply(ctx, tx, data)
		return err
	})
	if err != nil {
		return err
	}

	out := printer(cmd)
	if jsonOutput {
		return out.JSON(summary)
	}
	out.Success("Seeded %d countries, %d regions and %d specialties",
		summary.Countries, summary.Regions, summary.Specialties)
	return nil
}

func loadSeed() (*seed.Data, error) {
	if seedFile == "" {
		return seed.Default()
	}
	return seed.LoadFile(seedFile)
}
