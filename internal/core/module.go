// Package core provides the module runtime for chatrelay: a compile-time
// registry of modules and the lifecycle that loads, starts and stops them.
package core

import "strings"

// ModuleID is a dotted identifier such as "provider.ollama" or
// "gateway.http". The part before the first dot is the namespace.
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, found := strings.Cut(string(id), ".")
	if !found {
		return ""
	}
	return ns
}

// Name returns the part of the ID after the first dot, or the whole ID
// when it has no namespace.
func (id ModuleID) Name() string {
	_, name, found := strings.Cut(string(id), ".")
	if !found {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by everything that can be registered.
type Module interface {
	ModuleInfo() ModuleInfo
}
