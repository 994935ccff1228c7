// Package command provides CLI command definitions for kvstash.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/internal/cli/config"
	"github.com/yndnr/kvstash-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:  "init",
				Usage: "Write a default configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

// settingRow is one effective configuration setting.
type settingRow struct {
	Setting string `json:"setting" table:"SETTING"`
	Value   string `json:"value" table:"VALUE"`
}

func configShow(c *cli.Context) error {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, cfg)
	}

	path := c.String("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	fmt.Printf("Config file: %s\n\n", path)

	formatter := output.NewFormatter(output.FormatTable, true)
	return formatter.Format(os.Stdout, settingRows(cfg))
}

func settingRows(cfg *config.CLIConfig) []settingRow {
	return []settingRow{
		{Setting: "store.engine", Value: cfg.Store.Engine},
		{Setting: "store.path", Value: cfg.Store.Path},
		{Setting: "store.key_file", Value: cfg.Store.KeyFile},
		{Setting: "store.flush.mode", Value: cfg.Store.Flush.Mode},
		{Setting: "store.flush.interval", Value: cfg.Store.Flush.Interval},
		{Setting: "output", Value: cfg.Output},
		{Setting: "log.level", Value: cfg.Log.Level},
		{Setting: "log.format", Value: cfg.Log.Format},
	}
}

func configInit(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
