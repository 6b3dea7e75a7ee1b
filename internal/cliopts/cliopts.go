// Package cliopts is the external option source: CLI flags in, a
// validated Options struct out. Built on github.com/alexflint/go-arg.
package cliopts

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/xqb64/tsunami/internal/portset"
)

// Options is the fully-parsed, not-yet-validated command line.
type Options struct {
	Target         string          `arg:"-t,--target,required" help:"IPv4 literal or hostname to scan"`
	Ports          []portset.Port  `arg:"-p,--ports,separate" help:"individual ports to scan"`
	Ranges         []rangeValue    `arg:"-r,--ranges,separate" help:"port ranges to scan, each \"A-B\""`
	FlyingTasks    uint16          `arg:"-f,--flying-tasks" default:"512" help:"maximum concurrent in-flight probes"`
	MaxRetries     int             `arg:"-m,--max-retries" default:"3" help:"per-port retry cap"`
	BatchSize      int             `arg:"-b,--batch-size" default:"512" help:"dispatch chunk size"`
	NapAfterSpawn  float64         `arg:"-n,--nap-after-spawn" default:"10" help:"per-worker post-send sleep, in milliseconds"`
	NapAfterBatch  float64         `arg:"-N,--nap-after-batch" default:"10" help:"post-batch sleep, in milliseconds"`
	Verbose        bool            `arg:"-v,--verbose" help:"enable verbose logging"`
}

// rangeValue adapts portset.Range to go-arg's encoding.TextUnmarshaler-style
// hook (go-arg calls UnmarshalText for any flag type that implements it).
type rangeValue portset.Range

func (r *rangeValue) UnmarshalText(b []byte) error {
	parsed, err := portset.ParseRange(string(b))
	if err != nil {
		return err
	}
	*r = rangeValue(parsed)
	return nil
}

// Parse parses os.Args into Options and validates it, surfacing
// configuration errors before any network activity starts.
func Parse() (Options, error) {
	var opts Options
	p, err := arg.NewParser(arg.Config{}, &opts)
	if err != nil {
		return Options{}, fmt.Errorf("cliopts: building parser: %w", err)
	}
	if err := p.Parse(os.Args[1:]); err != nil {
		return Options{}, fmt.Errorf("cliopts: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate enforces that at least one of Ports or Ranges was supplied.
func (o Options) Validate() error {
	if len(o.Ports) == 0 && len(o.Ranges) == 0 {
		return fmt.Errorf("cliopts: at least one of --ports or --ranges is required")
	}
	return nil
}

// RangesAsPortset converts the parsed range flags to portset.Range.
func (o Options) RangesAsPortset() []portset.Range {
	out := make([]portset.Range, len(o.Ranges))
	for i, r := range o.Ranges {
		out[i] = portset.Range(r)
	}
	return out
}
