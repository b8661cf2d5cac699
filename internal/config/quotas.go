package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TenantQuota is one tenant's override block in the quotas file.
type TenantQuota struct {
	// RateLimit overrides the default per-window quota. 0 blocks the
	// tenant entirely; nil keeps the default.
	RateLimit *int `yaml:"rate_limit"`
	// CrossTenant permits reads of other tenants' tables.
	CrossTenant bool `yaml:"cross_tenant"`
}

// Quotas is the parsed per-tenant override file.
type Quotas struct {
	Tenants map[string]TenantQuota `yaml:"tenants"`
}

// CrossTenantList returns the tenants with cross-tenant access enabled.
func (q *Quotas) CrossTenantList() []string {
	var out []string
	for tenant, quota := range q.Tenants {
		if quota.CrossTenant {
			out = append(out, tenant)
		}
	}
	return out
}

// LoadQuotas parses the YAML override file. An empty path yields an empty
// quota set; a set path that does not exist is an error, since an operator
// who configured overrides should notice when they are not applied.
func LoadQuotas(path string) (*Quotas, error) {
	q := &Quotas{Tenants: map[string]TenantQuota{}}
	if path == "" {
		return q, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read quotas file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, q); err != nil {
		return nil, fmt.Errorf("parse quotas file %s: %w", path, err)
	}
	if q.Tenants == nil {
		q.Tenants = map[string]TenantQuota{}
	}
	return q, nil
}
