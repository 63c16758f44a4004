package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gauntlet",
		Short: "Assessment harness for CRM agents under entropy",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "gauntlet.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	return root
}
