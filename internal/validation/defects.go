package validation

import (
	"sort"
	"strings"
)

// StainOther is the catch-all stain that requires a free text description.
const StainOther = "other"

// Risk flags derived from an item's stains and defects.
const (
	RiskNoGuarantee    = "NO_GUARANTEE"
	RiskHighRiskStain  = "HIGH_RISK_STAIN"
	RiskExistingDamage = "PRE_EXISTING_DAMAGE"
)

var highRiskStains = map[string]struct{}{
	"ink":   {},
	"paint": {},
	"rust":  {},
	"oil":   {},
	"blood": {},
}

// Defect types the shop cannot guarantee a result for.
var noGuaranteeDefects = map[string]struct{}{
	"no_guarantee":    {},
	"worn_fabric":     {},
	"color_loss":      {},
	"missing_label":   {},
	"delicate_fabric": {},
}

// ItemDefects is the stains and defects section of the item wizard.
type ItemDefects struct {
	HasStains              bool     `json:"has_stains"`
	DetectedStains         []string `json:"detected_stains"`
	OtherStains            string   `json:"other_stains"`
	Defects                []string `json:"defects"`
	HasNoGuarantee         bool     `json:"has_no_guarantee"`
	NoGuaranteeExplanation string   `json:"no_guarantee_explanation"`
	RiskFlags              []string `json:"risk_flags"`
	ClientAcknowledgment   bool     `json:"client_acknowledgment"`
}

// DeriveItemDefects returns a copy of in with the dependent fields recomputed:
// stains and defects are normalized, a non-empty stain list sets HasStains, a
// no-guarantee defect sets HasNoGuarantee and RiskFlags is rebuilt from scratch.
// User-set flags are never cleared. Applying it twice yields the same value.
func DeriveItemDefects(in ItemDefects) ItemDefects {
	out := in
	out.DetectedStains = normalizeList(in.DetectedStains)
	out.Defects = normalizeList(in.Defects)
	out.OtherStains = strings.TrimSpace(in.OtherStains)
	out.NoGuaranteeExplanation = strings.TrimSpace(in.NoGuaranteeExplanation)

	if len(out.DetectedStains) > 0 {
		out.HasStains = true
	}
	for _, defect := range out.Defects {
		if _, ok := noGuaranteeDefects[defect]; ok {
			out.HasNoGuarantee = true
			break
		}
	}

	flags := []string{}
	if out.HasNoGuarantee {
		flags = append(flags, RiskNoGuarantee)
	}
	for _, stain := range out.DetectedStains {
		if _, ok := highRiskStains[stain]; ok {
			flags = append(flags, RiskHighRiskStain)
			break
		}
	}
	if len(out.Defects) > 0 {
		flags = append(flags, RiskExistingDamage)
	}
	sort.Strings(flags)
	out.RiskFlags = flags
	return out
}

var itemDefectRules = []Rule[ItemDefects]{
	{
		Field:   "detected_stains",
		Message: "select at least one stain",
		Check: func(d ItemDefects) bool {
			return !d.HasStains || len(d.DetectedStains) > 0
		},
	},
	{
		Field:   "other_stains",
		Message: "describe the other stains",
		Check: func(d ItemDefects) bool {
			return !contains(d.DetectedStains, StainOther) || strings.TrimSpace(d.OtherStains) != ""
		},
	},
	{
		Field:   "no_guarantee_explanation",
		Message: "explain why there is no guarantee",
		Check: func(d ItemDefects) bool {
			return !d.HasNoGuarantee || strings.TrimSpace(d.NoGuaranteeExplanation) != ""
		},
	},
	{
		Field:   "client_acknowledgment",
		Message: "client must acknowledge the listed risks",
		Check: func(d ItemDefects) bool {
			return len(d.RiskFlags) == 0 || d.ClientAcknowledgment
		},
	},
}

// ValidateItemDefects checks a derived defects snapshot.
func ValidateItemDefects(d ItemDefects) Result {
	return Evaluate(d, itemDefectRules)
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
