package config

import (
	"fmt"

	"github.com/everstacklabs/modelsync/internal/provider"
)

// Registry builds the provider registry: the built-in table overlaid with
// custom specs (same ID replaces), minus disabled providers.
func (c *Config) Registry() (*provider.Registry, error) {
	reg, err := provider.NewRegistry(provider.Builtin()...)
	if err != nil {
		return nil, fmt.Errorf("building provider registry: %w", err)
	}
	for _, s := range c.Providers.Custom {
		if err := reg.Register(s); err != nil {
			return nil, fmt.Errorf("registering custom provider: %w", err)
		}
	}
	reg.Remove(c.Providers.Disable...)
	return reg, nil
}

// ProviderSpecs returns the specs to fetch. only overrides the configured
// enable list when non-empty. Proxy aliases are dropped unless
// IncludeProxies is set.
func (c *Config) ProviderSpecs(only []string) ([]provider.Spec, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	ids := c.Providers.Enable
	if len(only) > 0 {
		ids = only
	}
	specs, err := reg.Select(ids)
	if err != nil {
		return nil, err
	}
	if !c.IncludeProxies {
		for i := range specs {
			specs[i].Rule.Alias = nil
		}
	}
	return specs, nil
}
