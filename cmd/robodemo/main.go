// Command robodemo runs the motor and sonar demo on a Linux host with GPIO
// (Raspberry Pi and similar). Pins and the device profile come from the
// environment or a .env file.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"robotdemo-go/bus"
	"robotdemo-go/drivers/motor"
	"robotdemo-go/drivers/sonar"
	"robotdemo-go/hal/periphhal"
	"robotdemo-go/services/config"
	"robotdemo-go/services/drive"
	"robotdemo-go/services/heartbeat"
	"robotdemo-go/x/timex"
)

type env struct {
	device   string
	motorFwd string
	motorBwd string
	trig     string
	echo     string
	logLevel slog.Level
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadEnv() env {
	e := env{
		device:   getenv("ROBO_DEVICE", "rpi"),
		motorFwd: getenv("ROBO_MOTOR_FWD", "GPIO12"),
		motorBwd: getenv("ROBO_MOTOR_BWD", "GPIO13"),
		trig:     getenv("ROBO_SONAR_TRIG", "GPIO23"),
		echo:     getenv("ROBO_SONAR_ECHO", "GPIO24"),
	}
	if err := e.logLevel.UnmarshalText([]byte(getenv("ROBO_LOG_LEVEL", "info"))); err != nil {
		e.logLevel = slog.LevelInfo
	}
	return e
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("loading .env", "err", err)
	}
	e := loadEnv()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: e.logLevel}))
	slog.SetDefault(log)

	if err := run(e, log); err != nil {
		log.Error("robodemo failed", "err", err)
		os.Exit(1)
	}
}

func run(e env, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := periphhal.Open(); err != nil {
		return err
	}
	pins := map[string]*periphhal.GPIO{}
	for _, name := range []string{e.motorFwd, e.motorBwd, e.trig, e.echo} {
		p, err := periphhal.Pin(name)
		if err != nil {
			return err
		}
		pins[name] = p
	}

	clk := timex.NewSystemClock()
	m, err := motor.New(pins[e.motorFwd], pins[e.motorBwd], clk, motor.Config{})
	if err != nil {
		return err
	}
	echo := pins[e.echo]
	s, err := sonar.New(pins[e.trig], echo, echo, clk, sonar.Config{})
	if err != nil {
		return err
	}

	log.Info("robodemo starting",
		"device", e.device,
		"motor_fwd", e.motorFwd,
		"motor_bwd", e.motorBwd,
		"sonar_trig", e.trig,
		"sonar_echo", e.echo)

	b := bus.NewBus(16)
	ctx = config.WithDevice(ctx, e.device)
	config.NewConfigService(log).Start(ctx, b.NewConnection("config"))
	heartbeat.New(log).Start(ctx, b.NewConnection("heartbeat"))
	go runMonitor(ctx, b.NewConnection("monitor"), log)

	err = drive.New(m, s, drive.Options{Log: log}).Run(ctx, b.NewConnection("drive"))
	for name, p := range pins {
		if perr := p.Err(); perr != nil {
			log.Warn("pin write error", "pin", name, "err", perr)
		}
	}
	return err
}
