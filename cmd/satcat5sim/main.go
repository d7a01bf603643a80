// Command satcat5sim runs the stack as a userspace simulation: a Linux
// TAP device stands in for the hardware port, and the cooperative
// scheduler services Ethernet/IPv4/ARP/UDP/ICMP dispatch plus an
// optional Tpipe session from a single poll loop (spec §5's "host loop
// calls poll() in a tight or timed loop").
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "satcat5sim",
	Short: "Userspace simulation harness for the satcat5 stack",
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML); overrides are also read from SATCAT5SIM_* env vars")
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetEnvPrefix("satcat5sim")
	viper.AutomaticEnv()
	if configFile == "" {
		return
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "satcat5sim: %v\n", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
