package api

import (
	"fmt"

	"github.com/compliance-sentinel/sentinel/internal/audit"
	"github.com/compliance-sentinel/sentinel/internal/compliance"
	"github.com/compliance-sentinel/sentinel/internal/config"
	"github.com/compliance-sentinel/sentinel/internal/generate"
	"github.com/compliance-sentinel/sentinel/internal/memorybank"
	"github.com/compliance-sentinel/sentinel/internal/metrics"
	"github.com/compliance-sentinel/sentinel/internal/rules"
	"github.com/compliance-sentinel/sentinel/internal/sessions"
	"github.com/compliance-sentinel/sentinel/internal/tickets"
	"github.com/compliance-sentinel/sentinel/pipeline"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Compliance *compliance.System
	Audit      *audit.Trail
	Tickets    tickets.System
	Memory     *memorybank.Bank
	Metrics    *metrics.Metrics
}

// NewDomain composes the pipeline runtime and every domain system from the
// API runtime. Generator and session store implementations are selected by
// configuration.
func NewDomain(runtime *Runtime) (*Domain, error) {
	cfg := runtime.Config

	memory, err := memorybank.New(cfg.Pipeline.PoliciesDir, cfg.Pipeline.TemplatesDir, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("memory bank init failed: %w", err)
	}

	var generator pipeline.Generator
	switch cfg.Pipeline.Generator {
	case config.GeneratorAgent:
		generator = generate.NewAgent(cfg.Agent)
	default:
		generator = generate.NewStub()
	}

	var sessionStore pipeline.SessionStore
	switch cfg.Pipeline.Sessions {
	case config.SessionsPostgres:
		sessionStore = sessions.NewStore(runtime.Database.Connection(), runtime.Logger)
	default:
		sessionStore = sessions.NewMemoryStore()
	}

	ruleSet := rules.NewRegistry()

	rt := &pipeline.Runtime{
		Generator: generator,
		Memory:    memory,
		Sessions:  sessionStore,
		Scanners:  pipeline.DefaultScanners(ruleSet, memory),
		Approval:  cfg.Pipeline.Approval.Policy(),
		Logger:    runtime.Logger.With("module", "pipeline"),
	}

	trail := audit.New(runtime.Storage, runtime.Logger)
	ticketSys := tickets.New(runtime.Logger)
	m := metrics.New()

	sys := compliance.New(
		rt,
		trail,
		m,
		ticketSys,
		memory,
		runtime.Storage,
		runtime.Logger,
		compliance.Options{
			MaxConcurrent:   cfg.Pipeline.MaxConcurrent,
			HashUploaderIDs: cfg.Pipeline.HashUploaderIDsEnabled(),
		},
	)

	return &Domain{
		Compliance: sys,
		Audit:      trail,
		Tickets:    ticketSys,
		Memory:     memory,
		Metrics:    m,
	}, nil
}
