package testsupport

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tierwatch/internal/services/indexverify"
	"tierwatch/internal/services/kubejob"
)

// FakeTagBackend records tag and objective operations in memory.
type FakeTagBackend struct {
	mu         sync.Mutex
	Tags       map[string]map[string]string // path -> tag -> value
	Objectives map[string]map[string]bool   // path -> objective -> applied
	SetErr     error
	ObjErr     error
	ListErr    error
}

// NewFakeTagBackend constructs an empty backend.
func NewFakeTagBackend() *FakeTagBackend {
	return &FakeTagBackend{
		Tags:       make(map[string]map[string]string),
		Objectives: make(map[string]map[string]bool),
	}
}

func (f *FakeTagBackend) SetTag(_ context.Context, path, name, value string) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Tags[path] == nil {
		f.Tags[path] = make(map[string]string)
	}
	f.Tags[path][name] = value
	return nil
}

func (f *FakeTagBackend) GetTag(_ context.Context, path, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Tags[path][name], nil
}

func (f *FakeTagBackend) HasTag(ctx context.Context, path, name, value string) (bool, error) {
	got, err := f.GetTag(ctx, path, name)
	return err == nil && got != "" && got == value, err
}

// ListTagMatches returns recorded paths under root carrying the named tag,
// sorted for deterministic assertions. An empty value matches any value.
func (f *FakeTagBackend) ListTagMatches(_ context.Context, root, name, value string) ([]string, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []string
	for path, tags := range f.Tags {
		if !strings.HasPrefix(path, root) {
			continue
		}
		got, ok := tags[name]
		if !ok || got == "" {
			continue
		}
		if value == "" || got == value {
			matches = append(matches, path)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func (f *FakeTagBackend) AddObjective(_ context.Context, objective, path string) error {
	if f.ObjErr != nil {
		return f.ObjErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Objectives[path] == nil {
		f.Objectives[path] = make(map[string]bool)
	}
	f.Objectives[path][objective] = true
	return nil
}

func (f *FakeTagBackend) RemoveObjective(_ context.Context, objective, path string) error {
	if f.ObjErr != nil {
		return f.ObjErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Objectives[path] != nil {
		f.Objectives[path][objective] = false
	}
	return nil
}

// TagValue reads a recorded tag without error plumbing.
func (f *FakeTagBackend) TagValue(path, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Tags[path][name]
}

// HasObjective reads a recorded objective state.
func (f *FakeTagBackend) HasObjective(path, objective string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Objectives[path][objective]
}

// FakeJobRunner records submissions and reports completion per job name.
type FakeJobRunner struct {
	mu        sync.Mutex
	Submitted []kubejob.Spec
	Done      map[string]bool
	SubmitErr error
}

// NewFakeJobRunner constructs an empty runner.
func NewFakeJobRunner() *FakeJobRunner {
	return &FakeJobRunner{Done: make(map[string]bool)}
}

func (f *FakeJobRunner) Submit(_ context.Context, spec kubejob.Spec) error {
	if f.SubmitErr != nil {
		return f.SubmitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submitted = append(f.Submitted, spec)
	return nil
}

func (f *FakeJobRunner) Succeeded(_ context.Context, jobName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Done[jobName], nil
}

// Complete marks a job as succeeded for subsequent polls.
func (f *FakeJobRunner) Complete(jobName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Done[jobName] = true
}

// LastSubmitted returns the most recent submission, if any.
func (f *FakeJobRunner) LastSubmitted() (kubejob.Spec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Submitted) == 0 {
		return kubejob.Spec{}, false
	}
	return f.Submitted[len(f.Submitted)-1], true
}

// FakeVerifier returns a fixed outcome per verification attempt.
type FakeVerifier struct {
	Outcome indexverify.Outcome
}

func (f *FakeVerifier) Confirm(context.Context, string, string) indexverify.Outcome {
	return f.Outcome
}
