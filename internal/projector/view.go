package projector

import (
	"strconv"

	"github.com/pharmaguard-client/internal/domain"
)

// View is everything a renderer needs for one result. Detail sections are always filled;
// Expanded says whether to show them.
type View struct {
	Drug       string
	RiskLabel  string
	RiskColor  Color
	RiskBar    int
	Confidence string
	Severity   string
	Expanded   bool

	Profile        ProfileView
	Recommendation string
	Explanation    string

	PatientID      string
	Timestamp      string
	AnalysisStatus string
	VCFParsed      string
}

// ProfileView is the pharmacogenomic profile section.
type ProfileView struct {
	PrimaryGene string
	Diplotype   string
	Phenotype   string
	Variants    []VariantView
}

// VariantView is one detected variant row.
type VariantView struct {
	Gene      string
	Allele    string
	RSID      string
	Phenotype string
}

// Project derives the view of result. A nil result projects to all placeholders.
func Project(result *domain.AnalysisResult, expanded bool) View {
	if result == nil {
		result = &domain.AnalysisResult{}
	}

	var label *string
	v := View{
		Drug:       Fallback(result.Drug, NotAvailable),
		Confidence: NotAvailable,
		Severity:   NotAvailable,
		Expanded:   expanded,
	}

	if ra := result.RiskAssessment; ra != nil {
		label = ra.RiskLabel
		if ra.ConfidenceScore != nil {
			v.Confidence = ra.ConfidenceScore.String()
		}
		v.Severity = Fallback(ra.Severity, NotAvailable)
	}

	v.RiskLabel = Fallback(label, UnknownLabel)
	rawLabel := ""
	if label != nil {
		rawLabel = *label
	}
	v.RiskColor = RiskColor(rawLabel)
	v.RiskBar = RiskBarPercent(rawLabel)

	v.Profile = projectProfile(result.PharmacogenomicProfile)

	v.Recommendation = NotAvailable
	if rec := result.ClinicalRecommendation; rec != nil {
		v.Recommendation = Fallback(rec.RecommendationText, NotAvailable)
	}

	v.Explanation = NotAvailable
	if exp := result.LLMGeneratedExplanation; exp != nil {
		v.Explanation = Fallback(exp.Summary, NotAvailable)
	}

	v.PatientID = Fallback(result.PatientID, NotAvailable)
	v.Timestamp = Fallback(result.Timestamp, NotAvailable)
	v.AnalysisStatus = Fallback(result.AnalysisStatus, NotAvailable)

	v.VCFParsed = NotAvailable
	if qm := result.QualityMetrics; qm != nil && qm.VCFParsingSuccess != nil {
		v.VCFParsed = strconv.FormatBool(*qm.VCFParsingSuccess)
	}

	return v
}

// ProjectOutcome projects every result of outcome.
func ProjectOutcome(outcome *domain.Outcome, expanded bool) []View {
	if outcome == nil {
		return nil
	}
	views := make([]View, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		views = append(views, Project(r, expanded))
	}
	return views
}

func projectProfile(p *domain.PharmacogenomicProfile) ProfileView {
	if p == nil {
		return ProfileView{
			PrimaryGene: NotAvailable,
			Diplotype:   NotAvailable,
			Phenotype:   NotAvailable,
		}
	}

	pv := ProfileView{
		PrimaryGene: Fallback(p.PrimaryGene, NotAvailable),
		Diplotype:   Fallback(p.Diplotype, NotAvailable),
		Phenotype:   Fallback(p.Phenotype, NotAvailable),
	}
	for _, dv := range p.DetectedVariants {
		pv.Variants = append(pv.Variants, VariantView{
			Gene:      Fallback(dv.Gene, NotAvailable),
			Allele:    Fallback(dv.Allele, NotAvailable),
			RSID:      Fallback(dv.RSID, NotAvailable),
			Phenotype: Fallback(dv.Phenotype, NotAvailable),
		})
	}
	return pv
}
