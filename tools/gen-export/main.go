// Command gen-export writes a synthetic partitioned data request export for
// load testing consolidation and queries on realistic sizes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/dreqtest"
)

// Manifest records how an export was generated.
type Manifest struct {
	Seed    uint64                    `json:"seed"`
	Version string                    `json:"version"`
	Options dreqtest.SyntheticOptions `json:"options"`
	Export  string                    `json:"export"`
}

func main() {
	d := dreqtest.DefaultSyntheticOptions()
	opps := flag.Int("opportunities", d.Opportunities, "number of opportunities")
	expts := flag.Int("experiments", d.Experiments, "number of experiments")
	vars := flag.Int("variables", d.Variables, "number of variables")
	groups := flag.Int("groups", d.GroupsPerOpportunity, "non-Core variable groups per opportunity")
	perGroup := flag.Int("group-size", d.VariablesPerGroup, "variables per non-Core group")
	core := flag.Int("core", d.CoreVariables, "Core variables requested by every opportunity")
	seed := flag.Uint64("seed", 0, "random seed (default: current time)")
	outDir := flag.String("out", "synthetic", "output directory")
	flag.Parse()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	opts := dreqtest.SyntheticOptions{
		Opportunities:        *opps,
		Experiments:          *expts,
		Variables:            *vars,
		GroupsPerOpportunity: *groups,
		VariablesPerGroup:    *perGroup,
		CoreVariables:        *core,
	}

	path, err := generate(*outDir, opts, *seed)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %s (seed %d)\n", path, *seed)
}

// generate writes the export and its manifest under dir and returns the
// export path.
func generate(dir string, opts dreqtest.SyntheticOptions, seed uint64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	content := dreqtest.Synthetic(opts, rng)

	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("dreq_synthetic_%d.json", seed))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	manifest := Manifest{Seed: seed, Version: dreqtest.Version, Options: opts, Export: filepath.Base(path)}
	jsonBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), jsonBytes, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
