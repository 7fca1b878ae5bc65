// Package testutils provides recording fakes for the system capability
// layer.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner records every command and replies from a scripted response
// table keyed by "name arg1 arg2 ...". Unknown commands succeed with empty
// output.
type FakeRunner struct {
	mu        sync.Mutex
	Responses map[string]Response
	Calls     []string
}

// Response is a scripted command outcome.
type Response struct {
	Output string
	Err    error
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: make(map[string]Response)}
}

func (r *FakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.mu.Lock()
	r.Calls = append(r.Calls, key)
	resp, ok := r.Responses[key]
	r.mu.Unlock()
	if !ok {
		return "", nil
	}
	return resp.Output, resp.Err
}

// Script registers a response for an exact command line.
func (r *FakeRunner) Script(cmdline, output string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[cmdline] = Response{Output: output, Err: err}
}

// CallCount returns how many recorded calls contain the substring.
func (r *FakeRunner) CallCount(substring string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.Calls {
		if strings.Contains(call, substring) {
			n++
		}
	}
	return n
}

// FakeFinder resolves only the binaries it was given.
type FakeFinder struct {
	Present map[string]string
}

func (f *FakeFinder) LookPath(name string) (string, error) {
	if path, ok := f.Present[name]; ok {
		return path, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

// FakePackageManager tracks installed packages in memory.
type FakePackageManager struct {
	mu       sync.Mutex
	Pkgs     map[string]bool
	Installs []string
	FailWith error
}

func NewFakePackageManager(installed ...string) *FakePackageManager {
	pkgs := make(map[string]bool, len(installed))
	for _, p := range installed {
		pkgs[p] = true
	}
	return &FakePackageManager{Pkgs: pkgs}
}

func (m *FakePackageManager) Installed(_ context.Context, pkg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Pkgs[pkg], nil
}

func (m *FakePackageManager) Install(_ context.Context, pkg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Pkgs[pkg] = true
	m.Installs = append(m.Installs, pkg)
	return nil
}

// FakeServiceManager tracks unit state in memory.
type FakeServiceManager struct {
	mu       sync.Mutex
	Active   map[string]bool
	Enabled  map[string]bool
	Starts   []string
	Enables  []string
	Reloads  []string
	FailWith error
}

func NewFakeServiceManager(active ...string) *FakeServiceManager {
	m := &FakeServiceManager{
		Active:  make(map[string]bool),
		Enabled: make(map[string]bool),
	}
	for _, unit := range active {
		m.Active[unit] = true
		m.Enabled[unit] = true
	}
	return m
}

func (m *FakeServiceManager) IsActive(_ context.Context, unit string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Active[unit], nil
}

func (m *FakeServiceManager) Start(_ context.Context, unit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Active[unit] = true
	m.Starts = append(m.Starts, unit)
	return nil
}

func (m *FakeServiceManager) Enable(_ context.Context, unit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Enabled[unit] = true
	m.Enables = append(m.Enables, unit)
	return nil
}

func (m *FakeServiceManager) Reload(_ context.Context, unit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Reloads = append(m.Reloads, unit)
	return nil
}
