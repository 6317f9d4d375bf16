package pumpcap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikesmitty/pump-cap/pkg/capping"
	"github.com/mikesmitty/pump-cap/pkg/control"
	"github.com/mikesmitty/pump-cap/pkg/dutycycle"
	"github.com/mikesmitty/pump-cap/pkg/mqtt"
	"github.com/mikesmitty/pump-cap/pkg/netmon"
	"github.com/mikesmitty/pump-cap/pkg/pwmin"
	"github.com/mikesmitty/pump-cap/pkg/pwmout"
	"github.com/mikesmitty/pump-cap/pkg/relay"
	"github.com/mikesmitty/pump-cap/pkg/router"
	"github.com/mikesmitty/pump-cap/pkg/watchdog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func Root() func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		slogOpts := slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if viper.GetBool("debug") {
			slogOpts.Level = slog.LevelDebug
		}
		log := slog.New(slog.NewTextHandler(os.Stderr, &slogOpts))
		slog.SetDefault(log)

		hostState, err := host.Init()
		errChk(err)
		for i := range hostState.Loaded {
			slog.Debug("loaded", "module", hostState.Loaded[i])
		}
		for i := range hostState.Failed {
			slog.Error("failed", "module", hostState.Failed[i])
		}
		for i := range hostState.Skipped {
			slog.Debug("skipped", "module", hostState.Skipped[i])
		}

		sampleInterval, err := interval("sample-interval")
		errChk(err)
		outputInterval, err := interval("output-interval")
		errChk(err)
		checkInterval, err := interval("check-interval")
		errChk(err)
		stateInterval, err := interval("state-interval")
		errChk(err)
		watchdogTimeout, err := interval("watchdog-timeout")
		errChk(err)

		ctx, cancelFunc := context.WithCancel(context.Background())
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(-1)

		// PWM output, opened first so the pump runs at full speed while
		// everything else comes up
		var freq physic.Frequency
		errChk(freq.Set(viper.GetString("pwm-out-frequency")))
		out, err := pwmout.Open(viper.GetString("pwm-out-driver"), viper.GetString("pwm-out-pin"), freq)
		errChk(err)
		driver := pwmout.NewDriver(out, viper.GetInt("hysteresis"))

		// PWM input
		in, err := pwmin.Open(viper.GetString("pwm-in-chip"), viper.GetInt("pwm-in-line"))
		errChk(err)
		defer in.Close()

		sampler := dutycycle.NewSampler(in, viper.GetDuration("pulse-timeout"))
		filter := dutycycle.NewFilter(sampler, viper.GetInt("sample-count"), viper.GetDuration("sample-spacing"))
		dutyCh, filterFn := dutycycle.FilterChannel(ctx, filter, sampleInterval)
		slog.Debug("starting pwm input filter")
		g.Go(filterFn)
		dutyFan := router.NewFan[dutycycle.Reading]("duty", dutyCh)
		dutyFan.SetDebug(viper.GetBool("debug"))
		loopCh, err := dutyFan.Subscribe("control")
		errChk(err)
		watchdogCh, err := dutyFan.Subscribe("watchdog")
		errChk(err)
		g.Go(dutyFan.Run)

		// Cap
		defaultCap := viper.GetInt("default-cap")
		if err := capping.Validate(defaultCap); err != nil {
			slog.Warn("default cap outside the adjustable range", "error", err)
		}
		setting := capping.NewSetting(defaultCap)

		// MQTT
		mqttUrl, err := url.Parse(viper.GetString("mqtt-broker"))
		errChk(err)
		mc := mqtt.NewClient(mqtt.Options{
			Broker:         mqttUrl,
			Username:       viper.GetString("mqtt-username"),
			Password:       viper.GetString("mqtt-password"),
			DeviceName:     viper.GetString("device-name"),
			SampleRate:     viper.GetInt("mqtt-sample-interval"),
			ConnectTimeout: viper.GetDuration("connect-timeout"),
		})
		defer mc.Close()
		errChk(mc.HomeAssistant())

		g.Go(mc.NumberFn(ctx, mqtt.NumberConfig{
			Name: "Pump cap",
			Icon: "mdi:gauge",
			Unit: "%",
			Min:  capping.MinPct,
			Max:  capping.MaxPct,
			Step: capping.StepPct,
		}, stateInterval, setting.Set, setting.Get))

		// Relay
		if viper.GetBool("relay-enabled") {
			r, err := relay.New(viper.GetString("relay-pin"))
			errChk(err)
			g.Go(mc.SwitchFn(ctx, "Relay", stateInterval, r.On, r.Off, r.State))
		}

		// The first connect may fail; the monitor keeps retrying.
		if err := mc.Begin(ctx); err != nil {
			slog.Warn("mqtt broker unreachable at startup", "error", err)
		}

		// Control loop
		loop := control.NewLoop(setting, driver, mc)
		slog.Debug("starting control loop")
		g.Go(loop.Run(ctx, outputInterval, loopCh))

		// Watchdog
		g.Go(watchdog.NewWatchdog(ctx, watchdogTimeout, loop.MarkStale, watchdogCh))

		// Connection monitor
		monitor := netmon.New(netmon.Config{
			ProbeAddr:         probeAddr(mqttUrl),
			ProbeCount:        viper.GetInt("probe-count"),
			ReconnectAttempts: viper.GetInt("reconnect-attempts"),
			ReconnectWait:     viper.GetDuration("reconnect-wait"),
			RebootThreshold:   viper.GetInt("reboot-threshold"),
		}, newLink(), netmon.TCPProber{Timeout: viper.GetDuration("probe-timeout")}, mc, newRestarter())
		g.Go(monitor.Run(ctx, checkInterval))

		// Signal handling
		chanSignal := make(chan os.Signal, 1)
		signal.Notify(chanSignal, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)

		g.Go(func() error {
			defer cancelFunc()
			select {
			case <-ctx.Done():
			case <-chanSignal:
			}
			slog.Info("shutting down...")
			slog.Info("releasing pump to full speed...", "committed", driver.Committed())
			if err := out.Halt(); err != nil {
				slog.Error("failed to halt pwm output", "error", err)
			}
			mc.Close()
			os.Exit(0)
			return nil
		})

		slog.Debug("waiting for goroutines to finish")
		err = g.Wait()
		errChk(err)
	}
}

func newLink() netmon.Link {
	switch viper.GetString("link") {
	case "none", "":
		return netmon.StaticLink{}
	case "networkmanager":
		l, err := netmon.NewNMLink(viper.GetDuration("connect-timeout"))
		errChk(err)
		return l
	default:
		errChk(fmt.Errorf("unknown link type %q", viper.GetString("link")))
		return nil
	}
}

func newRestarter() netmon.Restarter {
	switch viper.GetString("restart-mode") {
	case "reboot":
		return netmon.RebootRestarter
	case "exit":
		return netmon.ExitRestarter
	default:
		errChk(fmt.Errorf("unknown restart mode %q", viper.GetString("restart-mode")))
		return nil
	}
}

// interval returns the duration under key, which must be positive.
func interval(key string) (time.Duration, error) {
	d := viper.GetDuration(key)
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

// probeAddr returns the broker's host:port when check-ping is set.
func probeAddr(u *url.URL) string {
	if !viper.GetBool("check-ping") {
		return ""
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "ssl", "tls", "mqtts":
			port = "8883"
		case "ws":
			port = "80"
		case "wss":
			port = "443"
		default:
			port = "1883"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func errChk(err error) {
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
