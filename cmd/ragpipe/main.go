// Command ragpipe serves and runs retrieval pipelines over a JSON document collection.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragpipe/internal/config"
	"github.com/kailas-cloud/ragpipe/internal/version"
)

// rootFlags are shared by every command.
type rootFlags struct {
	env          string
	configPath   string
	pipelinePath string
	docsPath     string
	logLevel     string
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:           "ragpipe",
	Short:         "ragpipe: declarative multi-representation retrieval with rank fusion",
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.env, "env", config.GetEnv(), "environment: local, dev, docker, prod, test (selects config/<env>.yaml)")
	pf.StringVarP(&flags.configPath, "config", "c", "", "service config file (overrides --env lookup)")
	pf.StringVarP(&flags.pipelinePath, "pipeline", "p", "", "pipeline definition (overrides retrieval.pipeline_path)")
	pf.StringVarP(&flags.docsPath, "docs", "d", "", "documents file, .json array or .jsonl (overrides retrieval.documents_path)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}
