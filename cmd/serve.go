package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entropix/gauntlet/internal/config"
	"github.com/entropix/gauntlet/internal/corpus"
	"github.com/entropix/gauntlet/internal/server"
)

var flagAddr string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assessment service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			corp, err := corpus.Load(cfg.Corpus.Path, cfg.Corpus.OrgType)
			if err != nil {
				return fmt.Errorf("loading corpus: %w", err)
			}
			baselines, err := loadBaselines(cfg)
			if err != nil {
				return err
			}
			engine := server.New(server.Deps{
				Corpus:    corp,
				Baselines: baselines,
				Seed:      cfg.Seed,
			})
			fmt.Printf("Listening on %s (%d tasks loaded)\n", flagAddr, corp.Len())
			return engine.Run(flagAddr)
		},
	}
	cmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")
	return cmd
}
