package questions

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Provider supplies report definitions.
type Provider interface {
	ReportTypes(ctx context.Context) ([]ReportType, error)
	QuestionsFor(ctx context.Context, reportType string, asOf time.Time) ([]Spec, error)
}

// Script is the immutable set of definitions captured for one call.
type Script struct {
	AsOf        time.Time
	ReportTypes []ReportType
	Questions   map[string][]Spec
}

// ReportTypeByDigit finds the main-menu entry for a pressed digit.
func (s *Script) ReportTypeByDigit(digit string) (ReportType, bool) {
	for _, rt := range s.ReportTypes {
		if rt.MenuDigit == digit {
			return rt, true
		}
	}
	return ReportType{}, false
}

// ReportType finds a report type by key.
func (s *Script) ReportType(key string) (ReportType, bool) {
	for _, rt := range s.ReportTypes {
		if rt.Key == key {
			return rt, true
		}
	}
	return ReportType{}, false
}

// LoadScript snapshots every report type and its applicable questions as of the given date.
func LoadScript(ctx context.Context, p Provider, asOf time.Time) (*Script, error) {
	types, err := p.ReportTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("questions: load report types: %w", err)
	}
	script := &Script{
		AsOf:        asOf,
		ReportTypes: types,
		Questions:   make(map[string][]Spec, len(types)),
	}
	for _, rt := range types {
		specs, err := p.QuestionsFor(ctx, rt.Key, asOf)
		if err != nil {
			return nil, fmt.Errorf("questions: load %s questions: %w", rt.Key, err)
		}
		script.Questions[rt.Key] = specs
	}
	return script, nil
}

// MemoryProvider serves definitions held in memory.
type MemoryProvider struct {
	mu    sync.RWMutex
	types []ReportType
	specs []Spec
}

// NewMemoryProvider validates and stores the given definitions.
func NewMemoryProvider(types []ReportType, specs []Spec) (*MemoryProvider, error) {
	if err := ValidateReportTypes(types); err != nil {
		return nil, err
	}
	for _, s := range specs {
		if err := ValidateSpec(s); err != nil {
			return nil, err
		}
	}
	return &MemoryProvider{
		types: append([]ReportType(nil), types...),
		specs: append([]Spec(nil), specs...),
	}, nil
}

// ReportTypes returns a copy of the configured report types.
func (p *MemoryProvider) ReportTypes(context.Context) ([]ReportType, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ReportType(nil), p.types...), nil
}

// QuestionsFor returns the applicable questions in ordinal order.
func (p *MemoryProvider) QuestionsFor(_ context.Context, reportType string, asOf time.Time) ([]Spec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Select(p.specs, reportType, asOf), nil
}
