package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/occupancy/internal/occupancy"
	"github.com/banshee-data/occupancy/internal/sampler"
)

// DefaultConfigPath is the path to the canonical sampler defaults file.
const DefaultConfigPath = "config/sampler.defaults.json"

// Model names accepted by the Model field.
const (
	ModelSingle  = "single"
	ModelDynamic = "dynamic"
)

// SamplerConfig represents the configuration of a posterior sampling run.
// Nil fields fall back to the defaults returned by the Get* methods, so
// partial files are safe.
type SamplerConfig struct {
	Model *string `json:"model,omitempty" yaml:"model,omitempty"`

	// Chain layout
	Chains     *int    `json:"chains,omitempty" yaml:"chains,omitempty"`
	Iterations *int    `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	BurnIn     *int    `json:"burn_in,omitempty" yaml:"burn_in,omitempty"`
	Thin       *int    `json:"thin,omitempty" yaml:"thin,omitempty"`
	Seed       *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	Workers    *int    `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Proposal tuning
	ProposalScale    *float64 `json:"proposal_scale,omitempty" yaml:"proposal_scale,omitempty"`
	Adapt            *bool    `json:"adapt,omitempty" yaml:"adapt,omitempty"`
	TargetAcceptance *float64 `json:"target_acceptance,omitempty" yaml:"target_acceptance,omitempty"`

	// Beta priors
	PriorP     *occupancy.Beta `json:"prior_p,omitempty" yaml:"prior_p,omitempty"`
	PriorPsi   *occupancy.Beta `json:"prior_psi,omitempty" yaml:"prior_psi,omitempty"`
	PriorPsi1  *occupancy.Beta `json:"prior_psi1,omitempty" yaml:"prior_psi1,omitempty"`
	PriorPhi   *occupancy.Beta `json:"prior_phi,omitempty" yaml:"prior_phi,omitempty"`
	PriorGamma *occupancy.Beta `json:"prior_gamma,omitempty" yaml:"prior_gamma,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

func ptrBeta(v occupancy.Beta) *occupancy.Beta { return &v }

// EmptySamplerConfig returns a SamplerConfig with all fields set to nil.
func EmptySamplerConfig() *SamplerConfig {
	return &SamplerConfig{}
}

// DefaultSamplerConfig returns a SamplerConfig with every field populated
// with its default value.
func DefaultSamplerConfig() *SamplerConfig {
	empty := EmptySamplerConfig()
	return &SamplerConfig{
		Model:            ptrString(empty.GetModel()),
		Chains:           ptrInt(empty.GetChains()),
		Iterations:       ptrInt(empty.GetIterations()),
		BurnIn:           ptrInt(empty.GetBurnIn()),
		Thin:             ptrInt(empty.GetThin()),
		Seed:             ptrUint64(empty.GetSeed()),
		Workers:          ptrInt(empty.GetWorkers()),
		ProposalScale:    ptrFloat64(empty.GetProposalScale()),
		Adapt:            ptrBool(empty.GetAdapt()),
		TargetAcceptance: ptrFloat64(empty.GetTargetAcceptance()),
		PriorP:           ptrBeta(occupancy.Uniform),
		PriorPsi:         ptrBeta(occupancy.Uniform),
		PriorPsi1:        ptrBeta(occupancy.Uniform),
		PriorPhi:         ptrBeta(occupancy.Uniform),
		PriorGamma:       ptrBeta(occupancy.Uniform),
	}
}

// LoadSamplerConfig loads a SamplerConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be at most 1MB.
func LoadSamplerConfig(path string) (*SamplerConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySamplerConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical sampler defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SamplerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ subpackages
	}
	for _, path := range candidates {
		if cfg, err := LoadSamplerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SamplerConfig) Validate() error {
	if c.Model != nil && *c.Model != ModelSingle && *c.Model != ModelDynamic {
		return fmt.Errorf("model must be %q or %q, got %q", ModelSingle, ModelDynamic, *c.Model)
	}
	if c.Chains != nil && *c.Chains < 1 {
		return fmt.Errorf("chains must be at least 1, got %d", *c.Chains)
	}
	if c.Iterations != nil && *c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", *c.Iterations)
	}
	if c.BurnIn != nil && *c.BurnIn < 0 {
		return fmt.Errorf("burn_in must be non-negative, got %d", *c.BurnIn)
	}
	if c.Thin != nil && *c.Thin < 1 {
		return fmt.Errorf("thin must be at least 1, got %d", *c.Thin)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.ProposalScale != nil && !(*c.ProposalScale > 0) {
		return fmt.Errorf("proposal_scale must be positive, got %f", *c.ProposalScale)
	}
	if c.TargetAcceptance != nil && (*c.TargetAcceptance <= 0 || *c.TargetAcceptance >= 1) {
		return fmt.Errorf("target_acceptance must be between 0 and 1, got %f", *c.TargetAcceptance)
	}
	for name, prior := range map[string]*occupancy.Beta{
		"prior_p":     c.PriorP,
		"prior_psi":   c.PriorPsi,
		"prior_psi1":  c.PriorPsi1,
		"prior_phi":   c.PriorPhi,
		"prior_gamma": c.PriorGamma,
	} {
		if prior == nil {
			continue
		}
		if err := prior.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// GetModel returns the model name or the default.
func (c *SamplerConfig) GetModel() string {
	if c.Model == nil {
		return ModelSingle
	}
	return *c.Model
}

// GetChains returns the number of chains or the default.
func (c *SamplerConfig) GetChains() int {
	if c.Chains == nil {
		return 4
	}
	return *c.Chains
}

// GetIterations returns the post-burn-in iterations per chain or the default.
func (c *SamplerConfig) GetIterations() int {
	if c.Iterations == nil {
		return 2000
	}
	return *c.Iterations
}

// GetBurnIn returns the burn-in iterations per chain or the default.
func (c *SamplerConfig) GetBurnIn() int {
	if c.BurnIn == nil {
		return 1000
	}
	return *c.BurnIn
}

// GetThin returns the thinning interval or the default.
func (c *SamplerConfig) GetThin() int {
	if c.Thin == nil {
		return 1
	}
	return *c.Thin
}

// GetSeed returns the random seed or the default.
func (c *SamplerConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetWorkers returns the chain concurrency limit or the default (0, one per chain).
func (c *SamplerConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetProposalScale returns the initial logit-scale proposal sd or the default.
func (c *SamplerConfig) GetProposalScale() float64 {
	if c.ProposalScale == nil {
		return 0.5
	}
	return *c.ProposalScale
}

// GetAdapt returns whether proposal scales adapt during burn-in.
func (c *SamplerConfig) GetAdapt() bool {
	if c.Adapt == nil {
		return true
	}
	return *c.Adapt
}

// GetTargetAcceptance returns the adaptation target or the default.
func (c *SamplerConfig) GetTargetAcceptance() float64 {
	if c.TargetAcceptance == nil {
		return 0.44
	}
	return *c.TargetAcceptance
}

func priorOrUniform(b *occupancy.Beta) occupancy.Beta {
	if b == nil {
		return occupancy.Uniform
	}
	return *b
}

// SinglePriors returns the priors for the single-season model.
func (c *SamplerConfig) SinglePriors() occupancy.Priors {
	return occupancy.Priors{
		P:   priorOrUniform(c.PriorP),
		Psi: priorOrUniform(c.PriorPsi),
	}
}

// DynamicPriors returns the priors for the dynamic model.
func (c *SamplerConfig) DynamicPriors() occupancy.DynamicPriors {
	return occupancy.DynamicPriors{
		Psi1:  priorOrUniform(c.PriorPsi1),
		Phi:   priorOrUniform(c.PriorPhi),
		Gamma: priorOrUniform(c.PriorGamma),
		P:     priorOrUniform(c.PriorP),
	}
}

// Options converts the configuration into sampler options.
func (c *SamplerConfig) Options() sampler.Options {
	return sampler.Options{
		Chains:           c.GetChains(),
		Iterations:       c.GetIterations(),
		BurnIn:           c.GetBurnIn(),
		Thin:             c.GetThin(),
		Seed:             c.GetSeed(),
		ProposalScale:    c.GetProposalScale(),
		Adapt:            c.GetAdapt(),
		TargetAcceptance: c.GetTargetAcceptance(),
		Workers:          c.GetWorkers(),
	}
}
