package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/entropix/gauntlet/internal/config"
	"github.com/entropix/gauntlet/internal/corpus"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List corpus tasks and categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			corp, err := corpus.Load(cfg.Corpus.Path, cfg.Corpus.OrgType)
			if err != nil {
				return err
			}

			counts := map[string]int{}
			for _, t := range corp.Tasks() {
				counts[t.Category]++
			}
			categories := make([]string, 0, len(counts))
			for c := range counts {
				categories = append(categories, c)
			}
			sort.Strings(categories)

			fmt.Printf("Categories (%d):\n", len(categories))
			for _, c := range categories {
				fmt.Printf("  - %s (%d tasks)\n", c, counts[c])
			}
			fmt.Printf("\nTasks (%d, org_type=%s):\n", corp.Len(), corp.OrgType())
			for _, t := range corp.Tasks() {
				fmt.Printf("  - %s [%s] %s\n", t.ID, t.Category, t.RewardMetric)
			}
			return nil
		},
	}
}
