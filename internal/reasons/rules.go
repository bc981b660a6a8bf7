package reasons

import "fakedetect/internal/features"

// rule maps one feature condition to consumer-facing wording. Fake rules fire
// on weak evidence, Original rules on strong evidence.
type rule struct {
	feature  string
	applies  func(v float64) bool
	sentence string
}

// Rule tables in priority order: logo, text, colour, print, edges.
var (
	fakeRules = []rule{
		{features.LogoClarity, below(0.6), "Logo appears blurry or poorly printed compared to authentic products"},
		{features.TextAlignment, below(0.7), "Text alignment is inconsistent with genuine packaging standards"},
		{features.ColorDeviation, above(0.3), "Color scheme differs from authentic packaging"},
		{features.PrintTexture, below(0.65), "Print quality shows signs of low-resolution reproduction"},
		{features.EdgeSharpness, below(0.5), "Packaging edges lack the crispness of genuine products"},
	}

	originalRules = []rule{
		{features.LogoClarity, above(0.7), "Logo shows clear, high-quality printing consistent with authentic products"},
		{features.TextAlignment, above(0.7), "Text alignment matches professional packaging standards"},
		{features.ColorConsistency, above(0.7), "Color scheme is consistent with authentic packaging"},
		{features.PrintTexture, above(0.7), "Print quality indicates professional manufacturing"},
		{features.EdgeSharpness, above(0.6), "Packaging shows sharp, clean edges typical of genuine products"},
	}
)

// confidenceTier is a reason added when the classifier is confident enough.
type confidenceTier struct {
	above    float64
	sentence string
}

// Tiers are checked in order; only the first match applies.
var (
	fakeTiers = []confidenceTier{
		{85, "Multiple visual indicators strongly suggest counterfeit packaging"},
		{70, "Several visual features indicate potential counterfeit"},
	}
	originalTiers = []confidenceTier{
		{85, "All visual indicators strongly suggest authentic packaging"},
	}
)

// Generic reasons used to fill short lists.
var (
	fakeFallback = []string{
		"Overall visual quality is below authentic product standards",
		"Packaging details show inconsistencies with genuine products",
		"Manufacturing quality appears lower than expected for authentic items",
		"Visual characteristics deviate from reference authentic products",
		"Fine print and surface finish fall short of genuine packaging",
	}
	originalFallback = []string{
		"Overall visual quality meets authentic product standards",
		"Packaging details are consistent with genuine products",
		"Manufacturing quality appears consistent with authentic items",
		"Visual characteristics match reference authentic products",
		"Fine print and surface finish are consistent with genuine packaging",
	}
)

// Low-confidence notice, appended to the fallback pool below LowConfidence.
const lowConfidenceNotice = "Classifier confidence is low; manual inspection is recommended"

func below(t float64) func(float64) bool { return func(v float64) bool { return v < t } }
func above(t float64) func(float64) bool { return func(v float64) bool { return v > t } }
