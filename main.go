// Command m20 is the toolchain's CLI front end: three thin subcommands that
// wrap the assembler, linker, and simulator packages, built around this
// toolchain's three-program surface (spec §6.4) instead of one combined
// load-and-run binary.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/msedwar/m20/config"
	"github.com/msedwar/m20/encoder"
	"github.com/msedwar/m20/linker"
	"github.com/msedwar/m20/loader"
	"github.com/msedwar/m20/parser"
	"github.com/msedwar/m20/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "assemble":
		err = runAssemble(os.Args[2:])
	case "link":
		err = runLink(os.Args[2:])
	case "simulate":
		err = runSimulate(os.Args[2:])
	case "-version", "--version", "version":
		fmt.Printf("m20 %s\n", Version)
		return
	case "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `m20 is the assembler, linker, and simulator for the M20 instruction set.

Usage:
  m20 assemble <input.as> <output.obj>
  m20 link <output.exe> <input1.obj> <input2.obj>...
  m20 simulate <image.exe>
`)
}

// runAssemble implements the assemble subcommand (spec §6.4): parse one
// source file, encode it, and write the object file. Diagnostics from either
// pass are printed deduplicated and in source order; no object file is
// written if any errors were raised.
func runAssemble(args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: m20 assemble <input.as> <output.obj>")
	}
	inputPath, outputPath := fs.Arg(0), fs.Arg(1)

	src, err := os.ReadFile(inputPath) // #nosec G304 -- user-supplied source path
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", inputPath, err)
	}

	toks := parser.Significant(parser.NewLexer(string(src), inputPath).TokenizeAll())
	items, perrs := parser.NewParser(toks).Parse()
	if perrs.HasErrors() {
		fmt.Fprint(os.Stderr, perrs.Error())
		return fmt.Errorf("assembly failed with %d error(s)", len(perrs.Dedup()))
	}

	obj, eerrs := encoder.NewEncoder().Generate(items)
	if eerrs.HasErrors() {
		fmt.Fprint(os.Stderr, eerrs.Error())
		return fmt.Errorf("assembly failed with %d error(s)", len(eerrs.Dedup()))
	}

	data, err := obj.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal object file: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %q: %w", outputPath, err)
	}
	return nil
}

// runLink implements the link subcommand (spec §6.4/§4.4): read every object
// file in argument order, link them into one flat executable image, and
// write it out. No image is written if linking raised any errors.
func runLink(args []string) error {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: m20 link <output.exe> <input1.obj> <input2.obj>...")
	}
	outputPath := fs.Arg(0)

	l := linker.NewLinker()
	for _, objPath := range fs.Args()[1:] {
		data, err := os.ReadFile(objPath) // #nosec G304 -- user-supplied object path
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", objPath, err)
		}
		if err := l.AddObject(objPath, data); err != nil {
			return fmt.Errorf("failed to read object %q: %w", objPath, err)
		}
	}

	img, lerrs := l.Link()
	if lerrs.HasErrors() {
		for _, e := range lerrs.Errors {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("linking failed with %d error(s)", len(lerrs.Errors))
	}

	if err := os.WriteFile(outputPath, img, 0644); err != nil {
		return fmt.Errorf("failed to write %q: %w", outputPath, err)
	}
	return nil
}

// runSimulate implements the simulate subcommand (spec §6.4): load a flat
// executable image and run it to completion on a fresh virtual processor.
// Memory size, the instruction cap, and trace verbosity all come from the
// toolchain's config.toml (or its built-in defaults), loaded before the VM
// is constructed.
func runSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml (defaults to the platform config directory)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: m20 simulate <image.exe>")
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	machine := vm.NewVM(cfg.Simulator.MemorySize, os.Stdout)
	machine.MaxInstructions = cfg.Simulator.MaxInstructions
	machine.Trace = cfg.Simulator.EnableTrace
	if err := loader.LoadFile(machine, fs.Arg(0)); err != nil {
		return err
	}
	machine.Run()
	return nil
}
