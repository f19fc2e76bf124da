package testutil

import (
	"context"
	"sync"

	"github.com/kyleking/gen-console/internal/schema"
)

// StaticInspector serves a fixed table list and records every close
type StaticInspector struct {
	TablesList []schema.SchemaTable
	Err        error

	mu     sync.Mutex
	closed int
}

// NewStaticInspector returns an inspector serving tables
func NewStaticInspector(tables []schema.SchemaTable) *StaticInspector {
	return &StaticInspector{TablesList: tables}
}

func (s *StaticInspector) Tables(_ context.Context) ([]schema.SchemaTable, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	return s.TablesList, nil
}

func (s *StaticInspector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed++

	return nil
}

// Closed reports how many times Close was called
func (s *StaticInspector) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// RecordingGenerator records generation requests and answers with Result
type RecordingGenerator struct {
	Result *schema.GenResult
	Err    error

	mu       sync.Mutex
	requests []schema.GenRequest
}

func (g *RecordingGenerator) Generate(_ context.Context, req schema.GenRequest) (*schema.GenResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.Err != nil {
		return nil, g.Err
	}

	if g.Result == nil {
		return &schema.GenResult{Files: []string{}, Tables: len(req.Tables)}, nil
	}

	return g.Result, nil
}

// Requests returns the requests seen so far
func (g *RecordingGenerator) Requests() []schema.GenRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]schema.GenRequest(nil), g.requests...)
}
