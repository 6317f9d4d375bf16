package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mikesmitty/pump-cap/pkg/capping"
	"github.com/mikesmitty/pump-cap/pkg/dutycycle"
	"github.com/mikesmitty/pump-cap/pkg/netmon"
	"github.com/mikesmitty/pump-cap/pkg/pumpcap"
	"github.com/mikesmitty/pump-cap/pkg/pwmout"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pump-cap",
	Short: "Cap the speed a boiler asks of its PWM circulation pump",
	Long: `pump-cap sits between a boiler's PWM speed output and the circulation pump.
It measures the boiler's duty cycle, limits it to an adjustable cap and drives
the pump with the result. The cap is exposed to Home Assistant over MQTT.`,
	Run: pumpcap.Root(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pump-cap.yaml)")
	f.Bool("debug", false, "Enable debug logging")
	f.String("secrets", "/etc/pump-cap/secrets.env", "env file with MQTT_USERNAME and MQTT_PASSWORD")

	// PWM input
	f.String("pwm-in-chip", "gpiochip0", "gpio chip of the boiler pwm input")
	f.Int("pwm-in-line", 17, "gpio line offset of the boiler pwm input")
	f.Duration("pulse-timeout", dutycycle.DefaultPulseTimeout, "Timeout for a single pwm phase measurement")
	f.Int("sample-count", dutycycle.DefaultSampleCount, "Samples averaged per reading")
	f.Duration("sample-spacing", dutycycle.DefaultSampleSpacing, "Delay between samples in a reading")
	f.Duration("sample-interval", 3*time.Second, "Interval between readings")

	// PWM output
	f.String("pwm-out-driver", pwmout.DriverPeriph, "pwm output driver (periph or rpio)")
	f.String("pwm-out-pin", "GPIO18", "pump pwm output pin (bcm number for rpio)")
	f.String("pwm-out-frequency", "1kHz", "pump pwm output frequency")
	f.Int("hysteresis", pwmout.DefaultHysteresis, "Output change needed before the pin is rewritten")
	f.Bool("relay-enabled", false, "Expose the secondary relay output")
	f.String("relay-pin", "GPIO27", "relay output pin")

	// Control
	f.Int("default-cap", capping.DefaultPct, "Pump cap in percent at startup")
	f.Duration("output-interval", 3*time.Second, "Interval between output updates")
	f.Duration("watchdog-timeout", 10*time.Second, "Run at the cap after this long without pwm readings")

	// MQTT
	f.String("mqtt-broker", "tcp://localhost:1883", "mqtt broker url")
	f.String("mqtt-username", "", "mqtt username")
	f.String("mqtt-password", "", "mqtt password")
	f.Int("mqtt-sample-interval", 1, "Publish values every n output updates")
	f.Duration("state-interval", time.Minute, "Interval between Home Assistant cap and relay state refreshes")
	f.String("device-name", "", "Home Assistant device name (default is the hostname)")

	// Connection monitor
	f.String("link", "none", "network link to manage (networkmanager or none)")
	f.Duration("check-interval", 20*time.Second, "Connection health check interval")
	f.Bool("check-ping", true, "Probe the mqtt broker during health checks")
	f.Int("probe-count", netmon.DefaultProbeCount, "Broker probes per health check")
	f.Duration("probe-timeout", 2*time.Second, "Timeout for a single broker probe")
	f.Int("reconnect-attempts", netmon.DefaultReconnectAttempts, "Reconnect attempts per failed health check")
	f.Duration("reconnect-wait", netmon.DefaultReconnectWait, "Wait between reconnect attempts")
	f.Duration("connect-timeout", 30*time.Second, "Timeout for link and broker connects")
	f.Int("reboot-threshold", netmon.DefaultRebootThreshold, "Consecutive failed health checks before restarting")
	f.String("restart-mode", "reboot", "How to restart after too many failures (reboot or exit)")

	viper.BindPFlags(f)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pump-cap" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pump-cap")
	}

	if err := godotenv.Load(viper.GetString("secrets")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Failed to read secrets file:", err)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
