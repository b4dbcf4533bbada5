package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/techcorp/taskflow-support/internal/classify"
	"github.com/techcorp/taskflow-support/internal/domain"
)

func TestDefault_CoversAllAlwaysCategories(t *testing.T) {
	tbl := Default()
	for _, cat := range []string{"billing", "legal", "security", "account"} {
		o := tbl.Route(cat)
		if o.Name == "" || o.Contact == "" {
			t.Fatalf("category %q has no owner: %+v", cat, o)
		}
	}
	if got := tbl.Route("billing").Name; got != "Lisa Tanaka" {
		t.Fatalf("billing owner: got %q", got)
	}
}

func TestRoute_LikelyCategoriesFold(t *testing.T) {
	tbl := Default()
	if got := tbl.Route("churn_risk").Contact; got != "cs-lead@techcorp.io" {
		t.Fatalf("churn_risk should route to churn owner, got %q", got)
	}
	if got := tbl.Route("data_loss").Name; got != "Priya Patel" {
		t.Fatalf("data_loss should route to engineering, got %q", got)
	}
	if got := tbl.Route("something_new").Name; got != "Marcus Rivera" {
		t.Fatalf("unknown categories fall back to general, got %q", got)
	}
}

func TestPlanSLA(t *testing.T) {
	tbl := Default()
	cases := map[string]string{
		domain.PlanEnterprise: "1 hour",
		domain.PlanPro:        "4 hours",
		domain.PlanFree:       "24 hours",
		"unknown":             "24 hours",
	}
	for plan, want := range cases {
		if got := tbl.PlanSLA(plan); got != want {
			t.Fatalf("PlanSLA(%q) = %q; want %q", plan, got, want)
		}
	}
}

func TestUrgency(t *testing.T) {
	if got := Urgency(classify.TierAlways, classify.CategorySecurity, domain.PlanFree); got != UrgencyCritical {
		t.Fatalf("security always: got %q want critical", got)
	}
	if got := Urgency(classify.TierAlways, classify.CategoryBilling, domain.PlanFree); got != UrgencyHigh {
		t.Fatalf("billing always: got %q want high", got)
	}
	if got := Urgency(classify.TierLikely, "human_requested", domain.PlanFree); got != UrgencyNormal {
		t.Fatalf("likely: got %q want normal", got)
	}
	if got := Urgency(classify.TierLikely, "human_requested", domain.PlanEnterprise); got != UrgencyHigh {
		t.Fatalf("likely enterprise: got %q want high", got)
	}
	if got := Urgency(classify.TierNone, "", domain.PlanFree); got != UrgencyLow {
		t.Fatalf("none: got %q want low", got)
	}
}

func TestResponseTime(t *testing.T) {
	cases := map[string]string{
		UrgencyCritical: "<15 minutes",
		UrgencyHigh:     "<1 hour",
		UrgencyNormal:   "<4 hours",
		UrgencyLow:      "<24 hours",
	}
	for urgency, want := range cases {
		if got := ResponseTime(urgency); got != want {
			t.Fatalf("ResponseTime(%q) = %q; want %q", urgency, got, want)
		}
	}
}

func TestLoad_OverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	body := `
owners:
  billing:
    name: "Dana Cho"
    contact: "billing-escalations@techcorp.io"
    tier: 2
sla:
  enterprise: "30 minutes"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := tbl.Route("billing"); got.Name != "Dana Cho" || got.Tier != 2 {
		t.Fatalf("file should override billing owner: %+v", got)
	}
	// untouched keys keep their defaults
	if got := tbl.Route("legal").Name; got != "Rachel Foster" {
		t.Fatalf("legal owner should keep default, got %q", got)
	}
	if got := tbl.PlanSLA(domain.PlanEnterprise); got != "30 minutes" {
		t.Fatalf("enterprise SLA should be overridden, got %q", got)
	}
	if got := tbl.PlanSLA(domain.PlanPro); got != "4 hours" {
		t.Fatalf("pro SLA should keep default, got %q", got)
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	// empty path means defaults only
	if _, err := Load(""); err != nil {
		t.Fatalf("empty path should load defaults: %v", err)
	}
}
