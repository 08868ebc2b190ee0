package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/fwdtodo/internal/daemon"
	"github.com/matheus3301/fwdtodo/internal/profile"
	"github.com/matheus3301/fwdtodo/internal/runner"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "configuration file (default ~/.fwdtodo/config.toml)")
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	verboseFlag := flag.Bool("verbose", false, "log info messages to stderr")
	flag.Parse()

	if *profileFlag != "" {
		if err := profile.ValidateName(*profileFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			Runner: runner.Params{
				ConfigPath: *configFlag,
				Profile:    *profileFlag,
				Verbose:    *verboseFlag,
			},
		}),
		fx.NopLogger,
	)

	app.Run()
}
