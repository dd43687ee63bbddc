package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/aicheye/crustty/internal/config"
	"github.com/aicheye/crustty/internal/demo"
	"github.com/aicheye/crustty/internal/engerr"
	"github.com/aicheye/crustty/internal/engine"
	"github.com/aicheye/crustty/internal/ui/colorize"
)

var (
	verbose bool
	input   string
	maxStep int
)

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("CRUSTTY_NO_COLOR") == "" {
		os.Setenv("CRUSTTY_NO_COLOR", "1")
	}

	rootCmd := &cobra.Command{
		Use:   "crustty [demo]",
		Short: "Step through a tiny C interpreter, forward and backward",
		Long: `crustty drives an in-process interpreter for a small subset of C one
statement at a time, recording a full snapshot at every step so execution
can be rewound as easily as it can be advanced.

It never parses .c source: a program is one of the named, built-in demos
below, played back through the engine headlessly with a colorized trace of
each step.

Examples:
  crustty run fib                 # step fib(0..20) to completion
  crustty run double-free -v      # watch it fault, verbosely
  crustty list                    # show every built-in demo`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
	}

	runCmd := &cobra.Command{
		Use:   "run <demo>",
		Short: "Run a built-in demo to completion or fault",
		Args:  cobra.ExactArgs(1),
		RunE:  runDemo,
	}
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug logging")
	runCmd.Flags().StringVarP(&input, "input", "i", "", "whitespace-delimited scanf input")
	runCmd.Flags().IntVarP(&maxStep, "max-steps", "n", 100000, "step ceiling before giving up")
	rootCmd.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in demos",
		Args:  cobra.NoArgs,
		RunE:  listDemos,
	}
	rootCmd.AddCommand(listCmd)

	infoCmd := &cobra.Command{
		Use:   "info <demo>",
		Short: "Show a demo's function signatures",
		Args:  cobra.ExactArgs(1),
		RunE:  showInfo,
	}
	rootCmd.AddCommand(infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listDemos(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, p := range demo.All() {
		fmt.Fprintf(out, "%s %s\n", colorize.Tag("#"+p.Name), colorize.Comment(p.Description))
	}
	return nil
}

func showInfo(cmd *cobra.Command, args []string) error {
	p, ok := demo.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown demo %q", args[0])
	}
	prog := p.Build()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, colorize.Header(p.Name+": "+p.Description))
	fmt.Fprintln(out, colorize.Border(strings.Repeat("-", 40)))
	for _, fn := range prog.Funcs {
		fmt.Fprintf(out, "  %s %s(", fn.ReturnType.String(), colorize.FuncName(fn.Name))
		for i, param := range fn.Params {
			if i > 0 {
				fmt.Fprint(out, ", ")
			}
			fmt.Fprintf(out, "%s %s", param.Type.String(), param.Name)
		}
		fmt.Fprintln(out, ")")
	}
	return nil
}

// dumpFrame prints the byte contents of every local in the active frame,
// for -v/--verbose runs.
func dumpFrame(out io.Writer, e *engine.Engine) {
	frame := e.Stack().Top()
	if frame == nil {
		return
	}
	for _, name := range frame.SlotNames() {
		slot, ok := frame.Slot(name)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "    %s = %s\n", colorize.Tag(name), colorize.HexBytes(hex.EncodeToString(slot.Bytes)))
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	p, ok := demo.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown demo %q (see `crustty list`)", args[0])
	}

	cfg := config.Default()
	cfg.Verbose = verbose
	cfg.InitialInput = input

	e := engine.New(p.Build(), cfg)
	out := cmd.OutOrStdout()

	steps := 0
	for steps < maxStep {
		outcome, err := e.StepForward()
		steps++
		loc := e.CurrentLocation()
		fmt.Fprintf(out, "%s %s\n", colorize.Address(uint64(e.StepIndex())), colorize.Source(fmt.Sprintf("line %d:%d", loc.Line, loc.Col)))
		if verbose {
			dumpFrame(out, e)
		}
		if err != nil {
			var re *engerr.RuntimeError
			if errors.As(err, &re) {
				msg := re.Error()
				if re.Name != "" {
					msg = strings.Replace(msg, re.Name, colorize.Key(re.Name), 1)
				}
				fmt.Fprintln(out, colorize.Error("fault: "+msg))
			} else {
				fmt.Fprintln(out, colorize.Error("fault: "+err.Error()))
			}
			break
		}
		if outcome == engine.Halted {
			break
		}
	}

	if txt := e.Terminal().FullOutput(); txt != "" {
		fmt.Fprint(out, colorize.String(txt))
	}
	if e.Faulted() {
		return fmt.Errorf("program faulted after %d steps", e.StepIndex())
	}
	fmt.Fprint(out, colorize.Detail(fmt.Sprintf("halted after %d steps, %d live heap blocks\n", e.StepIndex(), e.Heap().LiveCount())))
	return nil
}
