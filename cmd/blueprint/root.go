package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dusk-indust/blueprint/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "blueprint",
	Short:         "Stage workflow engine for product blueprints",
	Long:          "Blueprint moves a product plan through product, data model, design, sections and export, drafting each downstream stage with A2A agents as earlier stages are approved.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("project-root", ".", "directory holding blueprint.yml and .env")
	pf.String("store", "", "store driver: memory, file, sqlite, postgres, redis, kuzu")
	pf.String("store-path", "", "store directory or database path")
	pf.String("dsn", "", "PostgreSQL connection string")
	pf.StringSlice("agents", nil, "A2A agent endpoint URLs")
	pf.Duration("timeout", 0, "gateway timeout for regeneration and execution")
	pf.BoolP("verbose", "v", false, "print engine events")

	_ = viper.BindPFlag("store.driver", pf.Lookup("store"))
	_ = viper.BindPFlag("store.path", pf.Lookup("store-path"))
	_ = viper.BindPFlag("store.dsn", pf.Lookup("dsn"))
	_ = viper.BindPFlag("gateway.agents", pf.Lookup("agents"))
	_ = viper.BindPFlag("gateway.timeout", pf.Lookup("timeout"))
	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
}

func initConfig() {
	viper.SetEnvPrefix("BLUEPRINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads blueprint.yml from the project root and applies flag and
// BLUEPRINT_* environment overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	root, _ := cmd.Flags().GetString("project-root")
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	overrideString(&cfg.Store.Driver, "store.driver")
	overrideString(&cfg.Store.Path, "store.path")
	overrideString(&cfg.Store.DSN, "store.dsn")
	overrideString(&cfg.Store.RedisAddr, "store.redisaddr")
	overrideString(&cfg.Gateway.Executor, "gateway.executor")
	overrideString(&cfg.Autosave.Schedule, "autosave.schedule")
	overrideString(&cfg.HTTP.Addr, "http.addr")
	overrideString(&cfg.Agent.Addr, "agent.addr")
	if agents := viper.GetStringSlice("gateway.agents"); len(agents) > 0 {
		cfg.Gateway.Agents = agents
	}
	if d := viper.GetDuration("gateway.timeout"); d > 0 {
		cfg.Gateway.Timeout = d
	}
	if viper.GetBool("verbose") {
		cfg.Verbose = true
	}
	return cfg, cfg.Validate()
}

func overrideString(dst *string, key string) {
	if v := viper.GetString(key); v != "" {
		*dst = v
	}
}
