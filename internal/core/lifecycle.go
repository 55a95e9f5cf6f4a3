package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive the raw YAML of their `modules.<id>` entry.
// Configure runs right after New and before Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules set themselves up and publish services.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their configuration. Validate must not have
// side effects.
type Validator interface {
	Validate() error
}

// Starter modules begin background work (listeners, schedulers).
// Start runs once every module is provisioned, so services published by
// other modules can be resolved here.
type Starter interface {
	Start() error
}

// Stopper modules release resources. Stop is called in reverse start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
