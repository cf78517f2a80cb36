package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// InterproceduralKind selects how calls are analyzed.
type InterproceduralKind int

const (
	// InterproceduralNone never analyzes callees.
	InterproceduralNone InterproceduralKind = iota
	// InterproceduralContextSensitive analyzes callees with the actual
	// state of the caller at each call site.
	InterproceduralContextSensitive
)

func (k InterproceduralKind) String() string {
	if k == InterproceduralNone {
		return "none"
	}
	return "context-sensitive"
}

func (k InterproceduralKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

func (k *InterproceduralKind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "none", "off", "":
		*k = InterproceduralNone
	case "context-sensitive", "contextsensitive", "on":
		*k = InterproceduralContextSensitive
	default:
		return fmt.Errorf("unknown interprocedural analysis kind %q", s)
	}
	return nil
}

// Config of a dataflow analysis. The zero value is not meaningful; start
// from Default.
type Config struct {
	Interprocedural InterproceduralKind `yaml:"interprocedural"`
	// MaxCallChain bounds the depth of nested calls to ordinary methods.
	MaxCallChain int `yaml:"max-call-chain"`
	// MaxLambdaCallChain bounds the depth of nested calls to lambdas and
	// local functions.
	MaxLambdaCallChain int `yaml:"max-lambda-call-chain"`
	// Pessimistic resets everything reachable from the arguments of calls
	// that are not analyzed.
	Pessimistic       bool `yaml:"pessimistic"`
	PredicateAnalysis bool `yaml:"predicate-analysis"`
	// ExceptionPaths requests the exception paths pass even for methods
	// without try regions.
	ExceptionPaths bool `yaml:"exception-paths"`
	// CacheSize is the number of results kept by the result cache.
	CacheSize int `yaml:"cache-size"`
	// MaxVisitDepth bounds the nesting of operations and calls visited
	// recursively.
	MaxVisitDepth int `yaml:"max-visit-depth"`
	// DebugChecks enables monotonicity assertions.
	DebugChecks bool `yaml:"debug-checks"`
	Verbose     bool `yaml:"verbose"`
}

// Default is the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Interprocedural:    InterproceduralContextSensitive,
		MaxCallChain:       3,
		MaxLambdaCallChain: 3,
		Pessimistic:        true,
		PredicateAnalysis:  true,
		ExceptionPaths:     false,
		CacheSize:          256,
		MaxVisitDepth:      512,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MaxCallChain < 0:
		return errors.Errorf("max-call-chain must not be negative, got %d", c.MaxCallChain)
	case c.MaxLambdaCallChain < 0:
		return errors.Errorf("max-lambda-call-chain must not be negative, got %d", c.MaxLambdaCallChain)
	case c.CacheSize <= 0:
		return errors.Errorf("cache-size must be positive, got %d", c.CacheSize)
	case c.MaxVisitDepth <= 0:
		return errors.Errorf("max-visit-depth must be positive, got %d", c.MaxVisitDepth)
	}
	return nil
}

// Parse reads a YAML configuration. Unspecified settings keep their
// default values.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "parsing configuration")
	}
	if err := c.Validate(); err != nil {
		return c, errors.Wrap(err, "invalid configuration")
	}
	return c, nil
}

// Load reads a YAML configuration file. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), errors.Wrapf(err, "reading configuration %s", path)
	}
	return Parse(data)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
