package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/mholloway/switchback/internal/app"
	"github.com/mholloway/switchback/internal/log"
	"github.com/mholloway/switchback/pkg/config"
)

var CLI struct {
	Config  string `short:"c" help:"Path to configuration source (YAML file or SQLite database)"`
	Backend string `help:"Configuration backend: 'yaml' or 'sqlite'" default:"yaml"`
	Debug   bool   `short:"v" help:"Enable debug logging"`
	Logfile string `help:"Also log to this file, with rotation"`

	Daemon struct{} `cmd:"" default:"1" help:"Run the wallpaper scheduling daemon"`

	Once struct {
		Period string `help:"Force a specific period (night, morning, afternoon) instead of computing it"`
	} `cmd:"" help:"Apply the wallpaper for the current instant and exit"`

	Schedule struct{} `cmd:"" help:"Print today's sun times and upcoming transitions"`

	Init struct {
		Force bool `help:"Overwrite an existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`
}

func main() {
	// Environment overrides for paths in the config may live in a .env
	// alongside the binary; absence is fine.
	godotenv.Load()

	kctx := kong.Parse(&CLI,
		kong.Name("switchback"),
		kong.Description("Sun-position driven desktop wallpaper scheduler for hyprpaper."))

	if err := log.Init(CLI.Debug, CLI.Logfile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(kctx.Command()); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(command string) error {
	if command == "init" {
		path := CLI.Config
		if path == "" {
			path = config.DefaultPath()
		}
		loc, err := config.DetectLocation(context.Background())
		if err != nil {
			log.Warnf("location auto-detect failed, seeding placeholder coordinates: %v", err)
			loc = config.FallbackLocation
		} else {
			log.Infof("detected location: %v, %v (%s)", loc.Latitude, loc.Longitude, loc.Timezone)
		}
		if err := config.WriteTemplate(path, CLI.Init.Force, loc); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	}

	provider, cfgPath, err := openProvider()
	if err != nil {
		return err
	}
	defer provider.Close()

	application := app.New(provider, cfgPath, log.GetSugaredLogger())

	switch command {
	case "daemon":
		return application.Run(context.Background())
	case "once":
		return application.Once(context.Background(), CLI.Once.Period)
	case "schedule":
		return application.PrintSchedule(os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// openProvider builds the configured backend. The returned path is
// non-empty only for file-backed configs, where it enables live reload
// on file change.
func openProvider() (config.Provider, string, error) {
	path := CLI.Config
	if path == "" {
		path = config.DefaultPath()
	}
	abs, err := filepath.Abs(config.ExpandPath(path))
	if err != nil {
		return nil, "", err
	}

	switch CLI.Backend {
	case "yaml":
		return config.NewYAMLProvider(abs), abs, nil
	case "sqlite":
		p, err := config.NewSQLiteProvider(abs)
		if err != nil {
			return nil, "", fmt.Errorf("opening SQLite config: %w", err)
		}
		return p, "", nil
	default:
		return nil, "", fmt.Errorf("unsupported configuration backend %q: use 'yaml' or 'sqlite'", CLI.Backend)
	}
}
