package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zapsend/zapsend/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configValidateCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/zapsend/config.yaml", "Path to configuration file")
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Database path: %s\n", cfg.Database.Path)
	fmt.Printf("  Report store path: %s\n", cfg.Reports.Path)
	fmt.Printf("  Max retries: %d\n", cfg.Dispatch.MaxRetries)
	fmt.Printf("  Send timeout: %s\n", cfg.Dispatch.SendTimeout)
	fmt.Printf("  Suggestions: %v\n", cfg.Suggest.Enabled)
	fmt.Printf("  Metrics: %v\n", cfg.Metrics.Enabled)
	fmt.Printf("  SMTP providers: %d\n", len(cfg.SMTP.Providers))

	return nil
}
