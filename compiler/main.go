package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xiaobogaga/diesel/compiler/internal"
)

var (
	out          string
	trace        bool
	skipOptimize bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "dieselc [flags] <file.d>",
	Short: "Compile a diesel program into SPARC assembler",
	Long: `dieselc compiles one diesel source file into SPARC assembler that
includes the runtime glue "diesel_glue.s".

Errors are printed to stderr and no output file is written when any is found.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := internal.Options{
			Trace:        trace,
			SkipOptimize: skipOptimize,
			Verbose:      verbose,
			Diagnostics:  cmd.ErrOrStderr(),
		}
		return internal.Compile(args[0], out, opts)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&out, "out", "o", "d.out", "the assembler output file")
	rootCmd.Flags().BoolVarP(&trace, "trace", "a", false, "interleave quads as comments with the assembler")
	rootCmd.Flags().BoolVar(&skipOptimize, "no-opt", false, "skip constant folding")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the compiler phases as they start")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
