// Package analysistest provides an in-process stand-in for the analysis service, with
// the same route, multipart contract and error body shape, for tests.
package analysistest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharmaguard-client/internal/domain"
)

// AnalyzePath is the route the fake service listens on.
const AnalyzePath = "/api/analyze"

// SampleResult is the default success body.
const SampleResult = `{
  "patient_id": "PATIENT_001",
  "drug": "WARFARIN",
  "timestamp": "2026-02-19T10:00:00Z",
  "risk_assessment": {"risk_label": "Adjust Dosage", "confidence_score": "92%", "severity": "Moderate"},
  "pharmacogenomic_profile": {
    "primary_gene": "CYP2C9",
    "diplotype": "*3/wt",
    "phenotype": "IM",
    "detected_variants": [{"gene": "CYP2C9", "allele": "*3", "rsid": "rs1057910", "phenotype": "Intermediate"}]
  },
  "clinical_recommendation": {"recommendation_text": "Dose adjustment required. Monitor plasma levels or consider alternative."},
  "llm_generated_explanation": {"summary": "CYP2C9 *3 reduces warfarin clearance."},
  "quality_metrics": {"vcf_parsing_success": true}
}`

// Submission is one request received by the fake service.
type Submission struct {
	RequestID    string
	Drug         string
	FileName     string
	FileContents []byte
}

// Server is a fake analysis service.
type Server struct {
	URL string

	srv         *httptest.Server
	mu          sync.Mutex
	status      int
	body        string
	hold        chan struct{}
	arrived     chan struct{}
	submissions []Submission
}

// NewServer starts a fake service answering every request with SampleResult.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		status:  http.StatusOK,
		body:    SampleResult,
		arrived: make(chan struct{}, 64),
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	router.POST(AnalyzePath, s.handleAnalyze)

	s.srv = httptest.NewServer(router)
	s.URL = s.srv.URL
	return s
}

// Config returns a service configuration pointing at the fake.
func (s *Server) Config() domain.ServiceConfig {
	return domain.ServiceConfig{
		BaseURL:     s.URL,
		AnalyzePath: AnalyzePath,
		Timeout:     10 * time.Second,
		RateLimit:   1000,
		UserAgent:   "analysistest",
	}
}

// Respond sets the status and raw body returned to later requests.
func (s *Server) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

// RespondJSON sets the status and a JSON-encoded body returned to later requests.
func (s *Server) RespondJSON(status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	s.Respond(status, string(data))
}

// Hold makes later requests block until release is called or the client gives up.
func (s *Server) Hold() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.hold == ch {
				s.hold = nil
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Arrived receives one value per request, after the request has been recorded.
func (s *Server) Arrived() <-chan struct{} {
	return s.arrived
}

// Submissions returns a copy of every request received so far.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Count returns the number of requests received.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

// Close shuts the fake service down.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

func (s *Server) handleAnalyze(c *gin.Context) {
	sub := Submission{
		RequestID: c.GetString("request_id"),
		Drug:      c.PostForm("drug"),
	}

	header, err := c.FormFile("file")
	if err == nil {
		sub.FileName = header.Filename
		if f, openErr := header.Open(); openErr == nil {
			sub.FileContents, _ = io.ReadAll(f)
			f.Close()
		}
	}

	s.mu.Lock()
	s.submissions = append(s.submissions, sub)
	status, body, hold := s.status, s.body, s.hold
	s.mu.Unlock()

	select {
	case s.arrived <- struct{}{}:
	default:
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No VCF"})
		return
	}

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			return
		}
	}

	c.Data(status, "application/json", []byte(body))
}
