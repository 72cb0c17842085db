// Package driver implements the compiler's command-line entry point: flag
// parsing into an Options struct, source reading, and the channel-fed
// output writer that worker goroutines stream object-file bytes through.
// It mirrors the teacher's util.ParseArgs/util.Options/util.Writer shape,
// generalized from a single -arch/-os/-vendor flag triplet to a richer,
// YAML-driven target descriptor (§10 of SPEC_FULL.md).
package driver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Options holds every setting parsed from the command line.
type Options struct {
	Src         string // Path to source file; empty means stdin.
	Out         string // Path to output object file; empty means stdout.
	Threads     int    // Worker goroutine count for per-function codegen fan-out.
	Verbose     bool   // Print compiler statistics and tree dumps.
	TokenStream bool   // Output the token stream and exit (-ts).
	DumpAST     bool   // Output the parsed AST and exit (-ast).
	TargetFile  string // Path to a YAML target descriptor (-target-file).
	Target      Target // Resolved target triple.
	StepLimit   int    // constexpr evaluator step limit (§5 default 1,000,000).
	DepthLimit  int    // template instantiation recursion depth limit (§5 default 1024).
}

const (
	maxThreads        = 64
	defaultStepLimit  = 1_000_000
	defaultDepthLimit = 1024
	appVersion        = "cppc 0.1 (C++20 subset ahead-of-time compiler)"
)

// DefaultOptions returns an Options populated with the spec's documented
// defaults (§5), before flag parsing overrides them.
func DefaultOptions() Options {
	return Options{
		Threads:    1,
		StepLimit:  defaultStepLimit,
		DepthLimit: defaultDepthLimit,
		Target:     DefaultTarget(),
	}
}

// ParseArgs parses os.Args[1:] into an Options struct.
func ParseArgs() (Options, error) {
	opt := DefaultOptions()
	args := os.Args[1:]
	if len(args) == 0 {
		return opt, nil
	}

	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			printHelp()
			os.Exit(0)
		case "-o":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			opt.Out = args[i1+1]
			i1++
		case "-t":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			t, err := strconv.Atoi(args[i1+1])
			if err != nil || t < 1 || t > maxThreads {
				return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
			}
			opt.Threads = t
			i1++
		case "-target":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			tgt, err := ParseTriple(args[i1+1])
			if err != nil {
				return opt, err
			}
			opt.Target = tgt
			i1++
		case "-target-file":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			tgt, err := LoadTargetFile(args[i1+1])
			if err != nil {
				return opt, err
			}
			opt.Target = tgt
			i1++
		case "-ts":
			opt.TokenStream = true
		case "-ast":
			opt.DumpAST = true
		case "-vb":
			opt.Verbose = true
		case "-v", "--v", "-version", "--version":
			fmt.Println(appVersion)
			os.Exit(0)
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			opt.Src = args[i1]
		}
	}
	return opt, nil
}

func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits.")
	_, _ = fmt.Fprintln(w, "-o\tPath to the output object file. Defaults to stdout.")
	_, _ = fmt.Fprintf(w, "-t\tWorker goroutine count, range [1, %d]. Defaults to 1.\n", maxThreads)
	_, _ = fmt.Fprintln(w, "-target\tTarget triple, e.g. x86_64-pc-linux-gnu or x86_64-pc-windows-msvc.")
	_, _ = fmt.Fprintln(w, "-target-file\tPath to a YAML target descriptor overriding the built-in triples.")
	_, _ = fmt.Fprintln(w, "-ts\tPrint the token stream and exit.")
	_, _ = fmt.Fprintln(w, "-ast\tPrint the parsed syntax tree and exit.")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: print compiler statistics to stdout.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints the application version and exits.")
	_ = w.Flush()
}
