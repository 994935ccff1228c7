// Package command provides CLI command definitions for kvstash.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

// PutCommand returns the put command.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Store a value under a key",
		ArgsUsage: "KEY [VALUE]",
		Description: "The value comes from the VALUE argument, --file, or standard\n" +
			"input, in that order. With --gen the KEY argument is omitted and a\n" +
			"fresh key is generated. The stored key is printed on success.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "gen",
				Aliases: []string{"g"},
				Usage:   "Generate a fresh key instead of taking a KEY argument",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the value from a file",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Store the value as a JSON document (must be valid JSON)",
			},
		},
		Action: runPut,
	}
}

func runPut(c *cli.Context) error {
	args := c.Args().Slice()

	var id uuid.UUID
	if c.Bool("gen") {
		id = uuid.New()
	} else {
		if len(args) == 0 {
			return fmt.Errorf("key required (or use --gen)")
		}
		var err error
		id, err = parseID(args[0])
		if err != nil {
			return err
		}
		args = args[1:]
	}

	value, err := readValue(c, args)
	if err != nil {
		return err
	}
	if c.Bool("json") && !json.Valid(value) {
		return fmt.Errorf("value is not valid JSON")
	}

	st, _, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if c.Bool("json") {
		err = st.Put(ctx, id, json.RawMessage(value))
	} else {
		err = st.PutReader(ctx, id, bytes.NewReader(value))
	}
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

// readValue resolves the value from the argument, --file, or stdin.
func readValue(c *cli.Context, args []string) ([]byte, error) {
	if len(args) > 0 {
		return []byte(args[0]), nil
	}
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read value: %w", err)
		}
		return data, nil
	}

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	return data, nil
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under a key",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "raw",
				Aliases: []string{"r"},
				Usage:   "Write the value verbatim without pretty-printing",
			},
		},
		Action: runGet,
	}
}

func runGet(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return fmt.Errorf("key required")
	}
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	st, _, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, found, err := st.Open(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("key %s not found", id)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if !c.Bool("raw") && json.Valid(data) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err == nil {
			buf.WriteByte('\n')
			_, err := buf.WriteTo(os.Stdout)
			return err
		}
	}

	_, err = os.Stdout.Write(data)
	return err
}

// ExistsCommand returns the exists command.
func ExistsCommand() *cli.Command {
	return &cli.Command{
		Name:      "exists",
		Usage:     "Check whether a key is present (exit status 0/1)",
		ArgsUsage: "KEY",
		Action:    runExists,
	}
}

func runExists(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return fmt.Errorf("key required")
	}
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	st, _, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	found, err := st.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("absent")
		return cli.Exit("", 1)
	}
	fmt.Println("present")
	return nil
}
