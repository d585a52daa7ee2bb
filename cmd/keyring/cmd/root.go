// Package cmd provides the CLI commands for keyring.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sendnodes-io/sendwallet-sub000/internal/config"
)

// envPrefix is the environment variable prefix for the CLI.
const envPrefix = "KEYRING"

var (
	cfgFile    string
	dataDir    string
	jsonOutput bool
	verbose    bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "keyring",
	Short: "keyring - encrypted wallet keyring vault",
	Long: `keyring manages an encrypted vault of wallet keyrings on your machine.

Get started:
  keyring unlock                  Create or unlock the vault
  keyring generate --import       Create a new recovery phrase
  keyring list                    Show keyrings and addresses
  keyring sign-message ADDR MSG   Sign a message

The vault password can be supplied through KEYRING_PASSWORD for scripts.
With session.cache set to redis an unlocked session carries over between
invocations until it idles out or 'keyring lock' is run.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.keyring/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "data directory (default ~/.keyring)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	v.SetDefault("storage.bolt_path", filepath.Join(getDataDir(), "keyring.db"))
	v.SetDefault("mcp.policy_path", filepath.Join(getDataDir(), "mcp-policy.yaml"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(getDataDir())
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if it exists.
	if err := v.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "failed to read config %s: %v\n", cfgFile, err)
	}
}

// isVerbose returns whether verbose mode is enabled.
func isVerbose() bool {
	if verbose {
		return true
	}
	return viper.GetBool("verbose")
}
