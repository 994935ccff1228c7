// Package command provides CLI command definitions for kvstash.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/pkg/crypto/adaptive"
)

// KeygenCommand returns the keygen command.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate an encryption key",
		Description: "Generates a random key and prints it hex-encoded, or writes it\n" +
			"to --out with 0600 permissions. Existing key files are never\n" +
			"overwritten.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "size",
				Value: 32,
				Usage: "Key size in bytes: 16, 24, or 32",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Write the key to a file instead of stdout",
			},
		},
		Action: runKeygen,
	}
}

func runKeygen(c *cli.Context) error {
	key, err := adaptive.GenerateKey(c.Int("size"))
	if err != nil {
		return err
	}

	path := c.String("out")
	if path == "" {
		fmt.Printf("%x\n", key)
		return nil
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := adaptive.WriteKeyFile(path, key); err != nil {
		return err
	}
	fmt.Printf("Wrote %d-byte key to %s\n", len(key), path)
	return nil
}
