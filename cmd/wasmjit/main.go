// Command wasmjit compiles the small typed expression language described
// by this repository down to WebAssembly, choosing per-function
// optimizations with a learned predictor under a compilation-cost
// budget. Command dispatch follows the teacher's cmd/sentra/main.go
// shape (an os.Args subcommand switch with a short alias table),
// reduced to the two operations this compiler actually exposes.
package main

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"

	"wasmjit/internal/config"
	"wasmjit/internal/pipeline"
)

var commandAliases = map[string]string{
	"c": "compile",
	"i": "inspect",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "compile":
		if err := runCompile(args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "wasmjit: "+err.Error())
			os.Exit(1)
		}
	case "inspect":
		if err := runInspect(args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "wasmjit: "+err.Error())
			os.Exit(1)
		}
	case "--help", "-h", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "wasmjit: unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: wasmjit <command> [arguments]")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  compile <file>   compile each function to <file>.<function>.wasm alongside it")
	fmt.Println("  inspect <file>   compile a source file and print the WAT for each function")
}

func runCompile(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("compile requires a source file argument")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	p := pipeline.New(config.Default(), rand.New(rand.NewSource(1)), nil, nil)
	result := p.Compile(string(source), args[0])
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("compilation failed with %d error(s)", len(result.Errors))
	}

	for _, fr := range result.Functions {
		if len(fr.Errors) > 0 {
			for _, e := range fr.Errors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			continue
		}
		outPath := args[0] + "." + fr.Name + ".wasm"
		if err := os.WriteFile(outPath, fr.WasmBinary, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes)\n", outPath, len(fr.WasmBinary))
	}
	return nil
}

func runInspect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("inspect requires a source file argument")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	p := pipeline.New(config.Default(), rand.New(rand.NewSource(1)), nil, nil)
	result := p.Compile(string(source), args[0])
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("compilation failed with %d error(s)", len(result.Errors))
	}

	for _, fr := range result.Functions {
		fmt.Printf("function %s — plan: %v, cost: %d\n", fr.Name, fr.Plan.Selected, fr.Plan.TotalCost)
		if len(fr.Errors) > 0 {
			for _, e := range fr.Errors {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			continue
		}
		fmt.Println(fr.WatText)
		fmt.Printf("binary: %d bytes, magic %s\n\n", len(fr.WasmBinary), hex.EncodeToString(fr.WasmBinary[:min(8, len(fr.WasmBinary))]))
	}
	return nil
}
