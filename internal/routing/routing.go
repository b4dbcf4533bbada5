// Package routing holds the static escalation routing table: which human
// owns each escalation category, the SLA per plan tier, and the urgency
// derived from category and plan. The table ships with compiled-in defaults
// and can be overridden from a YAML file so support leads rotate owners
// without a deploy.
package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/techcorp/taskflow-support/internal/classify"
	"github.com/techcorp/taskflow-support/internal/domain"
)

// Urgency levels and their first-response targets.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyNormal   = "normal"
	UrgencyLow      = "low"
)

// Owner is the human target of an escalation.
type Owner struct {
	Name    string `yaml:"name"`
	Contact string `yaml:"contact"`
	Tier    int    `yaml:"tier"`
}

// Table maps escalation categories to owners and plans to SLAs.
type Table struct {
	Owners map[string]Owner  `yaml:"owners"`
	SLA    map[string]string `yaml:"sla"`
}

// Default returns the compiled-in routing table.
func Default() *Table {
	return &Table{
		Owners: map[string]Owner{
			"billing":   {Name: "Lisa Tanaka", Contact: "billing@techcorp.io", Tier: 1},
			"legal":     {Name: "Rachel Foster", Contact: "legal@techcorp.io", Tier: 1},
			"security":  {Name: "James Okafor", Contact: "security@techcorp.io", Tier: 1},
			"account":   {Name: "Sarah Chen", Contact: "cs-lead@techcorp.io", Tier: 1},
			"technical": {Name: "Priya Patel", Contact: "engineering-support@techcorp.io", Tier: 1},
			"churn":     {Name: "Marcus Rivera", Contact: "cs-lead@techcorp.io", Tier: 1},
			"general":   {Name: "Marcus Rivera", Contact: "cs-lead@techcorp.io", Tier: 1},
		},
		SLA: map[string]string{
			domain.PlanEnterprise: "1 hour",
			domain.PlanPro:        "4 hours",
			domain.PlanFree:       "24 hours",
		},
	}
}

// Load reads a YAML routing file and overlays it on the defaults: file
// entries win per key, anything absent keeps its default.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing table: %w", err)
	}
	var file Table
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse routing table: %w", err)
	}
	for cat, o := range file.Owners {
		t.Owners[cat] = o
	}
	for plan, sla := range file.SLA {
		t.SLA[plan] = sla
	}
	return t, nil
}

// Route maps a classifier category to its owner. Likely-tier categories
// fold into the broader queues: churn risk to the churn owner, everything
// technical-looking to engineering, the rest to general.
func (t *Table) Route(category string) Owner {
	if o, ok := t.Owners[category]; ok {
		return o
	}
	switch category {
	case "churn_risk":
		return t.Owners["churn"]
	case "data_loss", "critical_enterprise_bug", "stuck_operations", "account_lockout":
		return t.Owners["technical"]
	}
	return t.Owners["general"]
}

// PlanSLA returns the first-response SLA for a plan tier.
func (t *Table) PlanSLA(plan string) string {
	if sla, ok := t.SLA[plan]; ok {
		return sla
	}
	return t.SLA[domain.PlanFree]
}

// Urgency derives the escalation urgency from the classifier result and the
// customer plan. Mandatory-handoff categories are at least high; enterprise
// raises one step.
func Urgency(tier classify.Tier, category, plan string) string {
	u := UrgencyNormal
	switch {
	case tier == classify.TierAlways &&
		(category == classify.CategorySecurity || category == classify.CategoryLegal):
		u = UrgencyCritical
	case tier == classify.TierAlways:
		u = UrgencyHigh
	case category == "critical_enterprise_bug" || category == "data_loss":
		u = UrgencyHigh
	case tier == classify.TierNone:
		u = UrgencyLow
	}
	if plan == domain.PlanEnterprise && u == UrgencyNormal {
		u = UrgencyHigh
	}
	return u
}

// ResponseTime maps urgency to the promised first-response window used in
// customer-facing acknowledgments.
func ResponseTime(urgency string) string {
	switch urgency {
	case UrgencyCritical:
		return "<15 minutes"
	case UrgencyHigh:
		return "<1 hour"
	case UrgencyNormal:
		return "<4 hours"
	default:
		return "<24 hours"
	}
}
