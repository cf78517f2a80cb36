package utils

import (
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type options struct {
	noColorize  bool
	verbose     bool
	debugChecks bool
	function    string
	analysis    string
	configPath  string
	dotOutput   string
	modulePath  string
	metrics     bool
	dump        bool
	tests       bool
}

var opts = &options{
	// Colors are only useful on an interactive terminal.
	noColorize: !term.IsTerminal(int(os.Stdout.Fd())),
}

type optInterface struct{}

// Opts exposes the process-wide options set from the command line.
func Opts() optInterface {
	return optInterface{}
}

func (optInterface) NoColorize() bool {
	return opts.noColorize
}
func (optInterface) Verbose() bool {
	return opts.verbose
}
func (optInterface) DebugChecks() bool {
	return opts.debugChecks
}
func (optInterface) Function() string {
	return opts.function
}
func (optInterface) Analysis() string {
	return opts.analysis
}
func (optInterface) ConfigPath() string {
	return opts.configPath
}
func (optInterface) DotOutput() string {
	return opts.dotOutput
}
func (optInterface) ModulePath() string {
	return opts.modulePath
}
func (optInterface) Metrics() bool {
	return opts.metrics
}
func (optInterface) Dump() bool {
	return opts.dump
}
func (optInterface) IncludeTests() bool {
	return opts.tests
}

// OnVerbose runs do when verbose output is requested.
func (optInterface) OnVerbose(do func()) {
	if opts.verbose {
		do()
	}
}

// OptionSetters returns pointers to every option, so that a command line
// front-end can bind its flags directly to them.
type OptionSetters struct {
	NoColorize, Verbose, DebugChecks, Metrics, Dump, IncludeTests *bool
	Function, Analysis, ConfigPath, DotOutput, ModulePath         *string
}

func Setters() OptionSetters {
	return OptionSetters{
		NoColorize:   &opts.noColorize,
		Verbose:      &opts.verbose,
		DebugChecks:  &opts.debugChecks,
		Metrics:      &opts.metrics,
		Dump:         &opts.dump,
		IncludeTests: &opts.tests,
		Function:     &opts.function,
		Analysis:     &opts.analysis,
		ConfigPath:   &opts.configPath,
		DotOutput:    &opts.dotOutput,
		ModulePath:   &opts.modulePath,
	}
}

// ApplyOptions propagates options that affect global state, e.g. the log level.
func ApplyOptions() {
	color.NoColor = opts.noColorize
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}
