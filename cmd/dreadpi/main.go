// Command dreadpi reads renewable production once, signals the matching
// demand response mode on two GPIO lines and exits.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/dreadpi/internal/config"
	"github.com/sweeney/dreadpi/internal/controller"
	"github.com/sweeney/dreadpi/internal/gpio"
	"github.com/sweeney/dreadpi/internal/mqtt"
	"github.com/sweeney/dreadpi/internal/supervisor"
	"github.com/sweeney/dreadpi/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitRunning = 2
)

func main() {
	os.Exit(execute(newApp(), os.Args[1:]))
}

// lock is a held single-instance lock.
type lock interface {
	Release() error
}

// app holds everything a command touches outside the process, so tests can
// substitute fakes.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// defaultErrorLog receives the reason a run stops when no configuration
	// could be loaded.
	defaultErrorLog string

	acquireLock  func(name string) (lock, error)
	openPins     func(chip string, order [2]int) (gpio.Pins, error)
	newDropper   func(user, group string) controller.Dropper
	newPublisher func(broker, clientID, topic string) (mqtt.Publisher, error)
	httpClient   *http.Client
	now          func() time.Time
}

func newApp() *app {
	return &app{
		stdout:          os.Stdout,
		stderr:          os.Stderr,
		defaultErrorLog: config.DefaultErrorLog,

		acquireLock: func(name string) (lock, error) {
			return supervisor.AcquireLock(name)
		},
		openPins: func(chip string, order [2]int) (gpio.Pins, error) {
			return gpio.NewRealPins(chip, order)
		},
		newDropper: func(user, group string) controller.Dropper {
			return supervisor.NewDropper(user, group)
		},
		newPublisher: func(broker, clientID, topic string) (mqtt.Publisher, error) {
			return mqtt.NewRealPublisher(broker, clientID, topic)
		},
		now: time.Now,
	}
}

type flags struct {
	configPath string
	envFile    string
}

func (a *app) rootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "dreadpi",
		Short:         "Signal air conditioner demand response modes from renewable production",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", config.DefaultPath, "configuration file (TOML)")
	root.PersistentFlags().StringVar(&f.envFile, "env-file", "", "optional .env file with DREADPI_ overrides")

	root.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Print the latched output state and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printState(f)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.stdout, version.Read())
			return err
		},
	})
	return root
}

// loggedError marks an error that has already been logged.
type loggedError struct{ error }

func (e loggedError) Unwrap() error { return e.error }

func execute(a *app, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.Execute()
	var logged loggedError
	if err != nil && !errors.As(err, &logged) {
		fmt.Fprintf(a.stderr, "dreadpi: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		return exitRunning
	default:
		return exitFatal
	}
}
