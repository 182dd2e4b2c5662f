// Command movestylusc compiles a Move bytecode module into a Stylus WASM
// binary, the move-to-wasm analogue of the teacher's cmd/run component
// driver: a flag-based CLI wrapping one library call.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/movestylus/compiler/bytecode"
	"github.com/movestylus/compiler/config"
	"github.com/movestylus/compiler/loader"
	"github.com/movestylus/compiler/mono"
	"github.com/movestylus/compiler/movestylus"
	"github.com/movestylus/compiler/router"
	"go.uber.org/zap"
)

func main() {
	var (
		modulePath = flag.String("module", "", "Path to the root .mv bytecode module")
		depsStr    = flag.String("deps", "", "Comma-separated dependency .mv module paths")
		out        = flag.String("out", "", "Output .wasm path (default: stdout)")
		list       = flag.Bool("list", false, "Print the derived selector table and exit")
		memPages   = flag.Uint("memory-pages", 1, "Initial linear memory size, in 64KiB pages")
		memMax     = flag.Uint("memory-limit-pages", 0, "Maximum linear memory size, in 64KiB pages (0 = unbounded)")
		names      = flag.Bool("names", false, "Set config.EmitNameSection (the compiler does not read it; no name section is emitted)")
	)
	flag.Parse()

	if *modulePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: movestylusc -module <file.mv> [-deps a.mv,b.mv] [-out out.wasm]")
		fmt.Fprintln(os.Stderr, "       movestylusc -module <file.mv> -list")
		os.Exit(1)
	}

	var deps []string
	if *depsStr != "" {
		deps = strings.Split(*depsStr, ",")
	}

	opts := []config.Option{
		config.WithInitialMemoryPages(uint32(*memPages)),
		config.WithMemoryLimitPages(uint32(*memMax)),
		config.WithNameSection(*names),
	}

	if *list {
		if err := printSelectors(*modulePath, deps); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	wasmBytes, err := movestylus.Compile(*modulePath, deps, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		if _, err := os.Stdout.Write(wasmBytes); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := os.WriteFile(*out, wasmBytes, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", *out, len(wasmBytes))
}

// printSelectors runs pipeline stages L/T/M and router.Build only, far
// cheaper than a full compile, to answer "what would this module export".
func printSelectors(modulePath string, depPaths []string) error {
	root, err := readModule(modulePath)
	if err != nil {
		return err
	}
	deps := make([]*bytecode.Module, len(depPaths))
	for i, p := range depPaths {
		dep, err := readModule(p)
		if err != nil {
			return err
		}
		deps[i] = dep
	}

	log := zap.NewNop()
	prog, err := loader.Load(log, root, deps)
	if err != nil {
		return err
	}
	monoProg, err := mono.Specialize(log, prog)
	if err != nil {
		return err
	}
	table, err := router.Build(prog, monoProg)
	if err != nil {
		return err
	}

	for i, sig := range table.FuncSignatures(prog) {
		fmt.Printf("%#08x  %s\n", table.Entries[i].SelectorU32, sig)
	}
	if table.Init != nil {
		fmt.Printf("init: %s\n", table.Init.Name)
	}
	return nil
}

func readModule(path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	mod, err := bytecode.Read(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return mod, nil
}
