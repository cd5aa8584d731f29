package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newShellCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive request shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "rng> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				AutoComplete:    shellCompleter,
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			sh := &shell{client: c, dial: opts.dialer(), out: rl.Stdout()}
			sh.printHelp()
			for {
				line, err := rl.Readline()
				if err != nil {
					if err == readline.ErrInterrupt {
						continue
					}
					return nil
				}
				if sh.exec(cmd.Context(), line) {
					return nil
				}
			}
		},
	}
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("seed"),
	readline.PcItem("rand32"),
	readline.PcItem("rand64"),
	readline.PcItem("check"),
	readline.PcItem("bench"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

// shell executes interactive commands against one connection.
type shell struct {
	client rngClient
	dial   dialFunc
	out    io.Writer
}

// exec runs one input line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		sh.printHelp()

	case "quit", "exit", "q":
		return true

	case "seed":
		if len(args) != 1 {
			err = errors.New("usage: seed VALUE")
			break
		}
		var v uint32
		if v, err = parseSeed(args[0]); err == nil {
			err = sh.client.Seed(ctx, v)
		}

	case "rand32", "r32", "rand64", "r64":
		width := 32
		if strings.HasSuffix(cmd, "64") {
			width = 64
		}
		count := 1
		if len(args) > 0 {
			if count, err = strconv.Atoi(args[0]); err != nil || count < 1 {
				err = fmt.Errorf("invalid count %q", args[0])
				break
			}
		}
		for range count {
			var s string
			if s, err = drawString(ctx, sh.client, width); err != nil {
				break
			}
			fmt.Fprintln(sh.out, s)
		}

	case "check":
		err = runCheck(ctx, sh.out, sh.client)

	case "bench":
		bo := benchOptions{iterations: 100_000, workers: 1}
		if len(args) > 0 {
			if bo.iterations, err = strconv.Atoi(args[0]); err != nil {
				err = fmt.Errorf("invalid iterations %q", args[0])
				break
			}
		}
		for _, w := range []int{32, 64} {
			bo.width = w
			var stats Stats
			if stats, err = runBench(ctx, sh.dial, bo); err != nil {
				break
			}
			stats.Report(sh.out)
		}

	default:
		err = fmt.Errorf("unknown command %q (try help)", cmd)
	}

	if err != nil {
		fmt.Fprintln(sh.out, "error:", err)
	}
	return false
}

func (sh *shell) printHelp() {
	fmt.Fprintln(sh.out, `Commands:
  seed VALUE     write a 32-bit seed
  rand32 [N]     draw N 32-bit values
  rand64 [N]     draw N 64-bit values
  check          seed and draw a few values
  bench [N]      benchmark N draws of each width
  help           show this help
  quit           leave the shell`)
}

// drawString draws one value of width bits and formats it as hex and
// decimal.
func drawString(ctx context.Context, c rngClient, width int) (string, error) {
	if width == 64 {
		v, err := c.Rand64(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("0x%016x (%d)", v, v), nil
	}
	v, err := c.Rand32(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0x%08x (%d)", v, v), nil
}
