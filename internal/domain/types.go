// Package domain contains the core types shared by the PharmaGuard client: the result
// schema returned by the pharmacogenomic analysis service, the request lifecycle state,
// the error taxonomy and configuration structures.
//
// The analysis service schema is external and is consumed, never produced, by this
// module. Every field is optional at every nesting level and decoding degrades a
// mistyped field to "absent" instead of rejecting the whole result.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Risk labels emitted by the analysis service.
const (
	RiskSafe         = "Safe"
	RiskAdjustDosage = "Adjust Dosage"
	RiskToxic        = "Toxic"
	RiskIneffective  = "Ineffective"
)

// AnalysisResult is a single drug risk assessment returned by the analysis service.
type AnalysisResult struct {
	Drug                    *string                 `json:"drug,omitempty"`
	PatientID               *string                 `json:"patient_id,omitempty"`
	Timestamp               *string                 `json:"timestamp,omitempty"`
	AnalysisStatus          *string                 `json:"analysis_status,omitempty"`
	RiskAssessment          *RiskAssessment         `json:"risk_assessment,omitempty"`
	PharmacogenomicProfile  *PharmacogenomicProfile `json:"pharmacogenomic_profile,omitempty"`
	ClinicalRecommendation  *ClinicalRecommendation `json:"clinical_recommendation,omitempty"`
	LLMGeneratedExplanation *Explanation            `json:"llm_generated_explanation,omitempty"`
	QualityMetrics          *QualityMetrics         `json:"quality_metrics,omitempty"`
}

// RiskAssessment holds the categorical risk verdict for a drug.
type RiskAssessment struct {
	RiskLabel       *string `json:"risk_label,omitempty"`
	ConfidenceScore *Score  `json:"confidence_score,omitempty"`
	Severity        *string `json:"severity,omitempty"`
}

// PharmacogenomicProfile describes the gene driving the assessment.
type PharmacogenomicProfile struct {
	PrimaryGene      *string           `json:"primary_gene,omitempty"`
	Diplotype        *string           `json:"diplotype,omitempty"`
	Phenotype        *string           `json:"phenotype,omitempty"`
	DetectedVariants []DetectedVariant `json:"detected_variants,omitempty"`
}

// DetectedVariant is a star-allele call parsed from the submitted VCF.
type DetectedVariant struct {
	Gene      *string `json:"gene,omitempty"`
	Allele    *string `json:"allele,omitempty"`
	RSID      *string `json:"rsid,omitempty"`
	Phenotype *string `json:"phenotype,omitempty"`
}

// ClinicalRecommendation carries the dosing advice.
type ClinicalRecommendation struct {
	RecommendationText *string `json:"recommendation_text,omitempty"`
}

// Explanation carries the generated plain-language summary.
type Explanation struct {
	Summary *string `json:"summary,omitempty"`
}

// QualityMetrics reports how well the service could read the submitted file.
type QualityMetrics struct {
	VCFParsingSuccess *bool `json:"vcf_parsing_success,omitempty"`
}

// Score is a confidence score that the service sends either as text ("92%") or as a
// number (0.92). The original representation is kept so re-encoding is lossless.
type Score struct {
	Text    string
	Numeric bool
}

// String returns the score as display text.
func (s Score) String() string {
	return s.Text
}

// MarshalJSON encodes the score in its original JSON type.
func (s Score) MarshalJSON() ([]byte, error) {
	if s.Numeric {
		return []byte(s.Text), nil
	}
	return json.Marshal(s.Text)
}

// UnmarshalJSON accepts a JSON string or number.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Score{Text: text}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(num.String(), 64); err != nil {
		return err
	}
	*s = Score{Text: num.String(), Numeric: true}
	return nil
}

// UnmarshalJSON decodes the result one field at a time. Only a body that is not a JSON
// object is an error; any individual field of the wrong shape is left nil.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*r = AnalysisResult{
		Drug:           lenientString(fields["drug"]),
		PatientID:      lenientString(fields["patient_id"]),
		Timestamp:      lenientString(fields["timestamp"]),
		AnalysisStatus: lenientString(fields["analysis_status"]),
	}
	r.RiskAssessment = lenientSection[RiskAssessment](fields["risk_assessment"])
	r.PharmacogenomicProfile = lenientSection[PharmacogenomicProfile](fields["pharmacogenomic_profile"])
	r.ClinicalRecommendation = lenientSection[ClinicalRecommendation](fields["clinical_recommendation"])
	r.LLMGeneratedExplanation = lenientSection[Explanation](fields["llm_generated_explanation"])
	r.QualityMetrics = lenientSection[QualityMetrics](fields["quality_metrics"])
	return nil
}

// UnmarshalJSON implements lenient decoding.
func (a *RiskAssessment) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*a = RiskAssessment{
		RiskLabel: lenientString(fields["risk_label"]),
		Severity:  lenientString(fields["severity"]),
	}
	if raw, ok := fields["confidence_score"]; ok && !isNull(raw) {
		var score Score
		if err := json.Unmarshal(raw, &score); err == nil {
			a.ConfidenceScore = &score
		}
	}
	return nil
}

// UnmarshalJSON implements lenient decoding.
func (p *PharmacogenomicProfile) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*p = PharmacogenomicProfile{
		PrimaryGene: lenientString(fields["primary_gene"]),
		Diplotype:   lenientString(fields["diplotype"]),
		Phenotype:   lenientString(fields["phenotype"]),
	}

	var items []json.RawMessage
	if raw, ok := fields["detected_variants"]; ok && json.Unmarshal(raw, &items) == nil {
		for _, item := range items {
			if v := lenientSection[DetectedVariant](item); v != nil {
				p.DetectedVariants = append(p.DetectedVariants, *v)
			}
		}
	}
	return nil
}

// UnmarshalJSON implements lenient decoding.
func (v *DetectedVariant) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*v = DetectedVariant{
		Gene:      lenientString(fields["gene"]),
		Allele:    lenientString(fields["allele"]),
		RSID:      lenientString(fields["rsid"]),
		Phenotype: lenientString(fields["phenotype"]),
	}
	return nil
}

// UnmarshalJSON implements lenient decoding.
func (c *ClinicalRecommendation) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*c = ClinicalRecommendation{RecommendationText: lenientString(fields["recommendation_text"])}
	return nil
}

// UnmarshalJSON implements lenient decoding.
func (e *Explanation) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*e = Explanation{Summary: lenientString(fields["summary"])}
	return nil
}

// UnmarshalJSON implements lenient decoding.
func (q *QualityMetrics) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*q = QualityMetrics{}
	var ok bool
	if raw, present := fields["vcf_parsing_success"]; present && json.Unmarshal(raw, &ok) == nil && !isNull(raw) {
		q.VCFParsingSuccess = &ok
	}
	return nil
}

// Outcome is a successful analysis: the parsed results plus the exact response body.
type Outcome struct {
	Results []*AnalysisResult
	Raw     json.RawMessage
}

// Primary returns the first result, or nil when there is none.
func (o *Outcome) Primary() *AnalysisResult {
	if o == nil || len(o.Results) == 0 {
		return nil
	}
	return o.Results[0]
}

var errEmptyResults = errors.New("response contains no results")

// DecodeOutcome parses a success body. The service answers with one object for a single
// drug and with an array of objects for a comma-separated drug list.
func DecodeOutcome(body []byte) (*Outcome, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	var results []*AnalysisResult
	switch trimmed[0] {
	case '{':
		var result AnalysisResult
		if err := json.Unmarshal(trimmed, &result); err != nil {
			return nil, err
		}
		results = append(results, &result)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			var result AnalysisResult
			if err := json.Unmarshal(item, &result); err != nil {
				// a non-object entry still occupies a slot so ordering is preserved
				result = AnalysisResult{}
			}
			results = append(results, &result)
		}
		if len(results) == 0 {
			return nil, errEmptyResults
		}
	default:
		return nil, errors.New("response is not a JSON object or array")
	}

	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)
	return &Outcome{Results: results, Raw: raw}, nil
}

func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("expected a JSON object")
	}
	return fields, nil
}

func lenientString(raw json.RawMessage) *string {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func lenientSection[T any](raw json.RawMessage) *T {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	section := new(T)
	if err := json.Unmarshal(raw, section); err != nil {
		return nil
	}
	return section
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
