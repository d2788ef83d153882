// Command wisp runs the wisp Lisp runtime: scripts, one-shot
// expressions, or an interactive REPL.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/chazu/wisp"
	"github.com/chazu/wisp/manifest"
	"github.com/chazu/wisp/vm"

	_ "github.com/tliron/commonlog/simple"
)

const version = "wisp 0.1.0"

const usage = `wisp

Usage:
  wisp [options] [SCRIPT]
  wisp [options] -e EXPR
  wisp -h | --help
  wisp --version

Arguments:
  SCRIPT  Path to a wisp program. Without one, an interactive session
          starts when stdin is a terminal; otherwise stdin is read as
          a program.

Options:
  -e EXPR          Evaluate a single expression and exit.
  --manifest PATH  Explicit wisp.toml path (default: search upwards).
  -v --verbose     Verbose logging.
  -h --help        Show this screen.
  --version        Show version.
`

func main() {
	opts, err := docopt.ParseArgs(usage, nil, version)
	if err != nil {
		// Error in the usage doc. This should never happen.
		panic(err.Error())
	}

	verbose, _ := opts.Bool("--verbose")
	verbosity := 0
	if verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("wisp")

	man, err := loadManifest(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wisp: %v\n", err)
		os.Exit(1)
	}

	m := vm.New(vm.Config{
		Quota:            man.Runtime.Quota,
		DefaultStackSize: man.Runtime.StackSize,
		MailboxSize:      man.Runtime.MailboxSize,
	}, vm.NewHostPlatform())

	registerHostExtensions(m)

	go m.Run()
	defer m.Kill()

	if expr, _ := opts.String("-e"); expr != "" {
		os.Exit(evalAndPrint(m, expr))
	}

	if script, _ := opts.String("SCRIPT"); script != "" {
		src, err := os.ReadFile(script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wisp: %v\n", err)
			os.Exit(1)
		}
		os.Exit(runProgram(m, string(src)))
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		log.Info("starting interactive session")
		repl(m, man)
		return
	}

	src, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wisp: %v\n", err)
		os.Exit(1)
	}
	os.Exit(runProgram(m, string(src)))
}

func loadManifest(opts docopt.Opts) (*manifest.Manifest, error) {
	if path, _ := opts.String("--manifest"); path != "" {
		return manifest.Load(path)
	}
	return manifest.FindAndLoad(".")
}

// registerHostExtensions adds the host-side built-ins guest code can
// call: printing for now.
func registerHostExtensions(m *vm.VM) {
	m.AddExtension("print", func(m *vm.VM, args []vm.Value) vm.Value {
		for i, a := range args {
			if i > 0 {
				fmt.Print(" ")
			}
			if a.IsString() {
				fmt.Print(m.StringOf(a))
			} else {
				fmt.Print(m.Str(a))
			}
		}
		fmt.Println()
		return vm.True
	})
}

func runProgram(m *vm.VM, src string) int {
	cid, err := wisp.LoadAndLaunch(m, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wisp: %v\n", err)
		return 1
	}
	r, ok := m.Wait(cid)
	if !ok {
		fmt.Fprintln(os.Stderr, "wisp: runtime killed before completion")
		return 1
	}
	if r.IsErrorSymbol() {
		fmt.Fprintf(os.Stderr, "wisp: %s\n", m.Str(r))
		return 1
	}
	fmt.Println(m.Str(r))
	return 0
}

func evalAndPrint(m *vm.VM, src string) int {
	cid, err := wisp.LoadAndLaunchExpression(m, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wisp: %v\n", err)
		return 1
	}
	r, ok := m.Wait(cid)
	if !ok {
		fmt.Fprintln(os.Stderr, "wisp: runtime killed before completion")
		return 1
	}
	if r.IsErrorSymbol() {
		fmt.Fprintf(os.Stderr, "wisp: %s\n", m.Str(r))
		return 1
	}
	fmt.Println(m.Str(r))
	return 0
}
