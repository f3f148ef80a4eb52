package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

// Generator mode values.
const (
	GeneratorStub  = "stub"
	GeneratorAgent = "agent"
)

// Session store driver values.
const (
	SessionsMemory   = "memory"
	SessionsPostgres = "postgres"
)

const (
	EnvPipelineGenerator       = "SENTINEL_PIPELINE_GENERATOR"
	EnvPipelineSessions        = "SENTINEL_PIPELINE_SESSIONS"
	EnvPipelineMaxConcurrent   = "SENTINEL_PIPELINE_MAX_CONCURRENT"
	EnvPipelineHashUploaderIDs = "SENTINEL_PIPELINE_HASH_UPLOADER_IDS"
	EnvMemoryPoliciesDir       = "SENTINEL_MEMORY_POLICIES_DIR"
	EnvMemoryTemplatesDir      = "SENTINEL_MEMORY_TEMPLATES_DIR"

	EnvApprovalCriticalWeight   = "SENTINEL_APPROVAL_CRITICAL_WEIGHT"
	EnvApprovalHighWeight       = "SENTINEL_APPROVAL_HIGH_WEIGHT"
	EnvApprovalMediumWeight     = "SENTINEL_APPROVAL_MEDIUM_WEIGHT"
	EnvApprovalLowWeight        = "SENTINEL_APPROVAL_LOW_WEIGHT"
	EnvApprovalAutoFixThreshold = "SENTINEL_APPROVAL_AUTO_FIX_THRESHOLD"
	EnvApprovalReviewThreshold  = "SENTINEL_APPROVAL_REVIEW_THRESHOLD"
)

// PipelineConfig holds pipeline composition and approval policy settings.
type PipelineConfig struct {
	// Generator selects "stub" or "agent".
	Generator string `toml:"generator"`

	// Sessions selects "memory" or "postgres".
	Sessions string `toml:"sessions"`

	MaxConcurrent   int    `toml:"max_concurrent"`
	HashUploaderIDs string `toml:"hash_uploader_ids"`

	PoliciesDir  string `toml:"policies_dir"`
	TemplatesDir string `toml:"templates_dir"`

	Approval ApprovalConfig `toml:"approval"`
}

// ApprovalConfig tunes the decision engine. Zero values fall back to the
// standard policy.
type ApprovalConfig struct {
	CriticalWeight   int `toml:"critical_weight"`
	HighWeight       int `toml:"high_weight"`
	MediumWeight     int `toml:"medium_weight"`
	LowWeight        int `toml:"low_weight"`
	AutoFixThreshold int `toml:"auto_fix_threshold"`
	ReviewThreshold  int `toml:"review_threshold"`
}

// HashUploaderIDsEnabled reports whether uploader ids should be hashed.
func (c *PipelineConfig) HashUploaderIDsEnabled() bool {
	v, err := strconv.ParseBool(c.HashUploaderIDs)
	if err != nil {
		return true
	}
	return v
}

// Policy converts the approval settings into a pipeline.ApprovalPolicy.
func (c *ApprovalConfig) Policy() pipeline.ApprovalPolicy {
	return pipeline.ApprovalPolicy{
		Weights: map[pipeline.Severity]int{
			pipeline.SeverityCritical: c.CriticalWeight,
			pipeline.SeverityHigh:     c.HighWeight,
			pipeline.SeverityMedium:   c.MediumWeight,
			pipeline.SeverityLow:      c.LowWeight,
		},
		AutoFixThreshold: c.AutoFixThreshold,
		ReviewThreshold:  c.ReviewThreshold,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.Generator != "" {
		c.Generator = overlay.Generator
	}
	if overlay.Sessions != "" {
		c.Sessions = overlay.Sessions
	}
	if overlay.MaxConcurrent != 0 {
		c.MaxConcurrent = overlay.MaxConcurrent
	}
	if overlay.HashUploaderIDs != "" {
		c.HashUploaderIDs = overlay.HashUploaderIDs
	}
	if overlay.PoliciesDir != "" {
		c.PoliciesDir = overlay.PoliciesDir
	}
	if overlay.TemplatesDir != "" {
		c.TemplatesDir = overlay.TemplatesDir
	}
	c.Approval.Merge(&overlay.Approval)
}

// Merge overwrites non-zero fields from overlay.
func (c *ApprovalConfig) Merge(overlay *ApprovalConfig) {
	if overlay.CriticalWeight != 0 {
		c.CriticalWeight = overlay.CriticalWeight
	}
	if overlay.HighWeight != 0 {
		c.HighWeight = overlay.HighWeight
	}
	if overlay.MediumWeight != 0 {
		c.MediumWeight = overlay.MediumWeight
	}
	if overlay.LowWeight != 0 {
		c.LowWeight = overlay.LowWeight
	}
	if overlay.AutoFixThreshold != 0 {
		c.AutoFixThreshold = overlay.AutoFixThreshold
	}
	if overlay.ReviewThreshold != 0 {
		c.ReviewThreshold = overlay.ReviewThreshold
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.Generator == "" {
		c.Generator = GeneratorStub
	}
	if c.Sessions == "" {
		c.Sessions = SessionsMemory
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
	if c.HashUploaderIDs == "" {
		c.HashUploaderIDs = "true"
	}
	if c.PoliciesDir == "" {
		c.PoliciesDir = "docs/policies"
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = "docs/templates"
	}

	standard := pipeline.DefaultApprovalPolicy()
	if c.Approval.CriticalWeight == 0 {
		c.Approval.CriticalWeight = standard.Weights[pipeline.SeverityCritical]
	}
	if c.Approval.HighWeight == 0 {
		c.Approval.HighWeight = standard.Weights[pipeline.SeverityHigh]
	}
	if c.Approval.MediumWeight == 0 {
		c.Approval.MediumWeight = standard.Weights[pipeline.SeverityMedium]
	}
	if c.Approval.LowWeight == 0 {
		c.Approval.LowWeight = standard.Weights[pipeline.SeverityLow]
	}
	if c.Approval.AutoFixThreshold == 0 {
		c.Approval.AutoFixThreshold = standard.AutoFixThreshold
	}
	if c.Approval.ReviewThreshold == 0 {
		c.Approval.ReviewThreshold = standard.ReviewThreshold
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineGenerator); v != "" {
		c.Generator = v
	}
	if v := os.Getenv(EnvPipelineSessions); v != "" {
		c.Sessions = v
	}
	if v := os.Getenv(EnvPipelineMaxConcurrent); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrent = n
		}
	}
	if v := os.Getenv(EnvPipelineHashUploaderIDs); v != "" {
		c.HashUploaderIDs = v
	}
	if v := os.Getenv(EnvMemoryPoliciesDir); v != "" {
		c.PoliciesDir = v
	}
	if v := os.Getenv(EnvMemoryTemplatesDir); v != "" {
		c.TemplatesDir = v
	}

	intEnv := func(envVar string, target *int) {
		if v := os.Getenv(envVar); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}

	intEnv(EnvApprovalCriticalWeight, &c.Approval.CriticalWeight)
	intEnv(EnvApprovalHighWeight, &c.Approval.HighWeight)
	intEnv(EnvApprovalMediumWeight, &c.Approval.MediumWeight)
	intEnv(EnvApprovalLowWeight, &c.Approval.LowWeight)
	intEnv(EnvApprovalAutoFixThreshold, &c.Approval.AutoFixThreshold)
	intEnv(EnvApprovalReviewThreshold, &c.Approval.ReviewThreshold)
}

func (c *PipelineConfig) validate() error {
	if c.Generator != GeneratorStub && c.Generator != GeneratorAgent {
		return fmt.Errorf("invalid generator: %q", c.Generator)
	}
	if c.Sessions != SessionsMemory && c.Sessions != SessionsPostgres {
		return fmt.Errorf("invalid sessions driver: %q", c.Sessions)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be positive: %d", c.MaxConcurrent)
	}
	if _, err := strconv.ParseBool(c.HashUploaderIDs); err != nil {
		return fmt.Errorf("invalid hash_uploader_ids: %q", c.HashUploaderIDs)
	}
	if c.Approval.AutoFixThreshold > c.Approval.ReviewThreshold {
		return fmt.Errorf(
			"auto_fix_threshold (%d) must not exceed review_threshold (%d)",
			c.Approval.AutoFixThreshold, c.Approval.ReviewThreshold,
		)
	}
	return nil
}
