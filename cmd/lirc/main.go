// Command lirc drives the translate -> clean -> phi-inversion-prep ->
// x64 lowering -> stack allocation -> emit pipeline end to end. Built
// the way oisee-z80-optimizer's cmd/z80opt/main.go is: one flat cobra command
// tree assembled inline in main(), RunE closures doing the real work,
// plain fmt.Printf/Println output rather than a structured logger.
//
// The lexer/parser/name-resolver/scheduler are out of scope, so every
// subcommand's input is a hir.Schedule: either one of the named
// internal/testfixture builders, or a JSON schedule file in the format
// hir.DecodeSchedule reads.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lirc/hir"
	"lirc/internal/config"
	"lirc/internal/testfixture"
	"lirc/lir"
	"lirc/lir/x64"
	"lirc/transform"
	"lirc/translate"
)

var fixtures = map[string]func() *hir.Schedule{
	"identity":    testfixture.Identity,
	"add_two":     testfixture.AddTwo,
	"max":         testfixture.Max,
	"sum_to":      testfixture.SumTo,
	"call_square": testfixture.CallSquare,
}

func loadSchedule(fixtureName, schedulePath string) (*hir.Schedule, error) {
	if fixtureName != "" {
		build, ok := fixtures[fixtureName]
		if !ok {
			return nil, fmt.Errorf("unknown fixture %q (known: %s)", fixtureName, knownFixtureNames())
		}
		return build(), nil
	}
	if schedulePath == "" {
		return nil, fmt.Errorf("one of --fixture or --schedule is required")
	}
	f, err := os.Open(schedulePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return hir.DecodeSchedule(f)
}

func knownFixtureNames() string {
	s := ""
	for name := range fixtures {
		if s != "" {
			s += ", "
		}
		s += name
	}
	return s
}

// pipeline runs every pass up to (but not including) code emission and
// returns the lowered, allocated function ready for lir/x64.Emitter.
func pipeline(schedule *hir.Schedule, cfg config.Pipeline) (*lir.Function, error) {
	target := x64.New()
	factory := lir.NewFactory(target)
	tr := translate.NewTranslator(factory)

	fn, err := tr.Translate(schedule)
	if err != nil {
		return nil, err
	}

	editor := lir.NewEditor(fn)

	if cfg.RunClean {
		clean := transform.NewClean()
		for clean.Run(fn, editor) {
		}
	}

	transform.PreparePhiInversion(fn, editor)

	lowering := x64.NewLowering(target)
	lowering.Run(fn, editor)

	alloc := transform.NewStackAllocator(target)
	for _, b := range fn.Blocks() {
		for _, instr := range b.Instructions() {
			if instr.Op == lir.OpCall {
				alloc.TrackCall(instr)
			}
		}
	}

	if cfg.DebugValidate {
		if errs := lir.NewValidator().ValidateFunction(fn); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "validate: %s\n", e.Error())
			}
			return nil, fmt.Errorf("%s failed post-lowering validation (%d errors)", fn.Name, len(errs))
		}
	}

	return fn, nil
}

func printListing(fn *lir.Function) {
	fmt.Printf("function %s (%d params)\n", fn.Name, len(fn.Params))
	for _, b := range fn.Blocks() {
		fmt.Printf("%s:\n", b.Name())
		for _, phi := range b.Phis() {
			fmt.Printf("  %s\n", phi.String())
		}
		for _, instr := range b.Instructions() {
			fmt.Printf("  %s\n", instr.String())
		}
	}
}

func main() {
	v := viper.New()
	var configPath, fixtureName, schedulePath string

	rootCmd := &cobra.Command{
		Use:   "lirc",
		Short: "HIR to x64 code-generation backend driver",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (toml/yaml/json)")
	rootCmd.PersistentFlags().StringVar(&fixtureName, "fixture", "", "name of a built-in test schedule (identity, add_two, max, sum_to, call_square)")
	rootCmd.PersistentFlags().StringVar(&schedulePath, "schedule", "", "path to a JSON hir.Schedule file (alternative to --fixture)")
	config.BindFlags(v, rootCmd.PersistentFlags())

	loadConfig := func() (config.Pipeline, error) {
		if err := config.LoadConfigFile(v, configPath); err != nil {
			return config.Pipeline{}, err
		}
		return config.Load(v)
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Translate, lower, and emit a schedule to a raw code image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			schedule, err := loadSchedule(fixtureName, schedulePath)
			if err != nil {
				return err
			}
			fn, err := pipeline(schedule, cfg)
			if err != nil {
				return err
			}

			target := x64.New()
			emitter := x64.NewEmitter(target)
			sink := newFileCodeBuilder()
			if err := emitter.Run(fn, sink); err != nil {
				return err
			}

			output := cfg.Output
			if output == "" {
				output = schedule.Name + ".bin"
			}
			if err := os.WriteFile(output, sink.code, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %d bytes to %s\n", len(sink.code), output)

			if cfg.EmitListing {
				listingPath := output + ".listing"
				if err := os.WriteFile(listingPath, []byte(sink.listing()), 0o644); err != nil {
					return err
				}
				fmt.Printf("wrote relocation listing to %s\n", listingPath)
			}
			return nil
		},
	}

	dumpLIRCmd := &cobra.Command{
		Use:   "dump-lir",
		Short: "Print a schedule's lowered LIR in the teacher's instruction-listing style",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			schedule, err := loadSchedule(fixtureName, schedulePath)
			if err != nil {
				return err
			}
			fn, err := pipeline(schedule, cfg)
			if err != nil {
				return err
			}
			printListing(fn)
			return nil
		},
	}

	disasmCmd := &cobra.Command{
		Use:   "disasm",
		Short: "Run the emitter and print its symbolic relocation listing to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			schedule, err := loadSchedule(fixtureName, schedulePath)
			if err != nil {
				return err
			}
			fn, err := pipeline(schedule, cfg)
			if err != nil {
				return err
			}
			target := x64.New()
			emitter := x64.NewEmitter(target)
			sink := newFileCodeBuilder()
			if err := emitter.Run(fn, sink); err != nil {
				return err
			}
			fmt.Print(sink.listing())
			return nil
		},
	}

	rootCmd.AddCommand(buildCmd, dumpLIRCmd, disasmCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
