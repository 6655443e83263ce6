// Command avenirvm runs the hand-assembled example programs in
// internal/examples against the bytecode VM, with optional disassembly
// tracing and a configuration file for repeated demo runs.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"avenirvm/internal/bytecode"
	"avenirvm/internal/config"
	"avenirvm/internal/examples"
	"avenirvm/internal/natives"
	"avenirvm/internal/persist"
	"avenirvm/internal/vm"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("avenirvm", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		example  string
		slow     bool
		trace    bool
		help     bool
		showVer  bool
		confPath string
	)
	fs.StringVar(&example, "x", "", "example to run (see -x=list)")
	fs.StringVar(&example, "example", "", "alias for -x")
	fs.BoolVar(&slow, "s", false, "pause between instructions")
	fs.BoolVar(&slow, "slow", false, "alias for -s")
	fs.BoolVar(&trace, "t", false, "trace each instruction and the operand stack")
	fs.BoolVar(&trace, "trace", false, "alias for -t")
	fs.BoolVar(&help, "h", false, "show usage")
	fs.BoolVar(&help, "help", false, "alias for -h")
	fs.BoolVar(&showVer, "version", false, "show version")
	fs.StringVar(&confPath, "config", "avenirvm.toml", "optional TOML config file")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if help {
		usage()
		return 0
	}
	if showVer {
		fmt.Println("avenirvm", version)
		return 0
	}

	cfg, err := config.Load(confPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading config:", err)
		return 1
	}
	if example == "" {
		example = cfg.Example
	}
	if !slow {
		slow = cfg.Slow
	}
	if !trace {
		trace = cfg.Trace
	}
	if example == "" {
		example = "arithmetic"
	}
	if example == "list" {
		listExamples()
		return 0
	}

	ex, ok := examples.Find(example)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown example %q\n", example)
		listExamples()
		return 1
	}

	pool := bytecode.NewInternPool()
	defer pool.Teardown()
	chunk := ex.Build(pool)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			fmt.Println(strings.Repeat("-", min(w, 72)))
		}
		fmt.Println(chunk.Disassemble(ex.Name))
	}

	machine := vm.NewVM(chunk, pool)
	machine.SetTrace(trace)
	machine.SetSlow(slow)

	natives.Install(machine)
	natives.InstallHash(machine)
	natives.InstallCodec(machine)
	mgr := persist.NewManager()
	natives.InstallPersist(machine, mgr)

	_, result, err := machine.Interpret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "runtime error:", err)
		if rerr, ok := err.(*vm.RuntimeError); ok {
			fmt.Fprint(os.Stderr, rerr.StackTrace())
		}
		return 1
	}
	if result != vm.ResultOk {
		fmt.Fprintln(os.Stderr, "interpretation did not complete successfully:", result)
		return 1
	}
	return 0
}

func listExamples() {
	fmt.Println("available examples:")
	for _, ex := range examples.List() {
		fmt.Printf("  %-12s %s\n", ex.Name, ex.Description)
	}
}

func usage() {
	fmt.Println(`avenirvm — a stack-based bytecode VM for a small dynamic language

Usage:
  avenirvm [-x example] [-s] [-t] [-config path]

Flags:
  -x, --example <name>  which built-in example to run (default "arithmetic", or "list")
  -s, --slow             pause between instructions
  -t, --trace            print the operand stack and disassembled instruction before each step
  -config <path>         optional TOML config file (default "avenirvm.toml")
  -version               print the version and exit
  -h, --help             show this message`)
}
