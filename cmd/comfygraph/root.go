package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jaeone94/comfy-mobile-graph/client"
	"github.com/jaeone94/comfy-mobile-graph/workflow"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var rootCmd = &cobra.Command{
	Use:   "comfygraph",
	Short: "Edit and run ComfyUI workflow documents from the terminal",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("server", "127.0.0.1:8188", "ComfyUI server address (host:port)")
	rootCmd.PersistentFlags().String("workflows", defaultWorkflowDir(), "directory holding workflow documents")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("workflows", rootCmd.PersistentFlags().Lookup("workflows"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	viper.SetConfigName("comfygraph")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config"))
	}
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("COMFYGRAPH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("loaded config")
	}
}

func defaultWorkflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "workflows"
	}
	return filepath.Join(home, ".comfygraph", "workflows")
}

func openStore() (*workflow.FileStore, error) {
	return workflow.NewFileStore(viper.GetString("workflows"))
}

func newClient() (*client.Client, error) {
	host, portStr, err := net.SplitHostPort(viper.GetString("server"))
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", viper.GetString("server"), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid server port %q", portStr)
	}
	return client.New(host, port), nil
}
