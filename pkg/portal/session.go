package portal

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jamabandi/pkg/logger"
	"jamabandi/pkg/validator"
)

// ErrSessionExpired is returned when the portal bounced a request to the
// login flow. The session is dead; the owning worker must stop and a new
// credential obtained out of band.
var ErrSessionExpired = errors.New("portal session expired")

// Target identifies the record set the form selects: a village within a
// tehsil within a district, for one revenue period
type Target struct {
	DistrictCode string
	TehsilCode   string
	VillageCode  string
	Period       string
}

// Outcome classifies a record fetch for the worker loop
type Outcome int

const (
	// OutcomeSaved means the record artifact was persisted
	OutcomeSaved Outcome = iota
	// OutcomeFailed means the fetch failed for this id only; the
	// session is still usable and the loop should continue
	OutcomeFailed
	// OutcomeSessionExpired means the session is dead and the worker
	// must stop processing
	OutcomeSessionExpired
)

// FetchResult is the classified outcome of fetching one record.
// StatusCode and Elapsed feed the caller's rate limiter; StatusCode is
// zero when the request never completed.
type FetchResult struct {
	Outcome    Outcome
	Path       string
	Bytes      int64
	Error      string
	Permanent  bool
	StatusCode int
	Elapsed    time.Duration
}

// ArtifactWriter persists fetched record bodies. Implemented by the
// storage package.
type ArtifactWriter interface {
	SaveHTML(khewat int, body []byte) (string, error)
	SavePDF(khewat int, body []byte) (string, error)
}

// tokens holds the ASP.NET anti-forgery state parsed from the last
// response. Refreshed before every postback.
type tokens struct {
	viewState          string
	viewStateGenerator string
	eventValidation    string
}

// FormSession drives the portal's multi-step postback form for one
// worker. Not safe for concurrent use; each worker owns its own
// instance.
type FormSession struct {
	client        *Client
	target        Target
	writer        ArtifactWriter
	validate      *validator.Validator
	formPath      string
	debugDir      string
	postbackSleep time.Duration
	logger        logger.Logger

	tokens    tokens
	formReady bool
	expired   bool
}

// NewFormSession creates a form session over the given client. An empty
// formPath falls back to the portal default. debugDir receives raw HTML
// dumps when form setup fails.
func NewFormSession(client *Client, target Target, writer ArtifactWriter, formPath, debugDir string, postbackSleep time.Duration, log logger.Logger) *FormSession {
	if log == nil {
		log = logger.GetLogger()
	}
	if formPath == "" {
		formPath = FormPath
	}
	return &FormSession{
		client:        client,
		target:        target,
		writer:        writer,
		validate:      validator.New(),
		formPath:      formPath,
		debugDir:      debugDir,
		postbackSleep: postbackSleep,
		logger:        log,
	}
}

// Ready reports whether the form is configured and the next record can
// be fetched without re-running the selection sequence
func (s *FormSession) Ready() bool {
	return s.formReady && !s.expired
}

// Expired reports whether the session has been detected dead
func (s *FormSession) Expired() bool {
	return s.expired
}

// InitializeForm loads the form landing page and extracts the initial
// tokens. Fails if the page is a login bounce or tokens are absent.
func (s *FormSession) InitializeForm() error {
	s.logger.Debug("loading form page")

	resp, err := s.client.Get(s.formPath)
	if err != nil {
		return fmt.Errorf("failed to load form: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Type: ErrorTypeServerError, Message: "form page unavailable", Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read form page: %w", err)
	}
	html := string(body)

	if !s.loggedIn(html) {
		s.expired = true
		return ErrSessionExpired
	}
	if err := s.parseTokens(html); err != nil {
		return err
	}

	s.logger.Debug("form loaded")
	return nil
}

// SetupFormSelections runs the five dependent postbacks in order:
// selection mode, district, tehsil, village, period. Each step reuses
// tokens from the prior response and posts the cumulative selection.
func (s *FormSession) SetupFormSelections() error {
	steps := []struct {
		name        string
		eventTarget string
		fields      map[string]string
	}{
		{"mode", controlRadioKhewat, s.selection("", "", "", "")},
		{"district", controlDistrict, s.selection(s.target.DistrictCode, "", "", "")},
		{"tehsil", controlTehsil, s.selection(s.target.DistrictCode, s.target.TehsilCode, "", "")},
		{"village", controlVillage, s.selection(s.target.DistrictCode, s.target.TehsilCode, s.target.VillageCode, "")},
		{"period", controlPeriod, s.selection(s.target.DistrictCode, s.target.TehsilCode, s.target.VillageCode, s.target.Period)},
	}

	var html string
	for i, step := range steps {
		s.logger.DebugWithFields("form selection step", map[string]interface{}{
			"step":   step.name,
			"target": step.eventTarget,
		})

		body, err := s.postback(step.eventTarget, step.fields)
		if err != nil {
			return fmt.Errorf("postback %s failed: %w", step.name, err)
		}
		if err := s.parseTokens(body); err != nil {
			return fmt.Errorf("token parse after %s step: %w", step.name, err)
		}
		html = body

		if i < len(steps)-1 {
			time.Sleep(s.postbackSleep)
		}
	}

	if !strings.Contains(strings.ToLower(html), controlKhewat) {
		path := s.dumpDebugHTML(html)
		s.logger.WarnWithFields("khewat selector missing after form setup", map[string]interface{}{
			"debug_file": path,
		})
		return &Error{Type: ErrorTypeParsing, Message: "khewat selector not populated after setup"}
	}

	s.formReady = true
	s.logger.Debug("form setup complete")
	return nil
}

// FetchRecord submits the final postback selecting the given khewat and
// classifies the response. Ordinary failures are returned in the result,
// not as errors, so the worker loop handles every record uniformly.
func (s *FormSession) FetchRecord(khewat int) FetchResult {
	form := url.Values{}
	form.Set(fieldEventTarget, "")
	form.Set(fieldEventArgument, "")
	form.Set(fieldLastFocus, "")
	form.Set(fieldViewState, s.tokens.viewState)
	form.Set(fieldViewStateGenerator, s.tokens.viewStateGenerator)
	form.Set(fieldViewStateEncrypted, "")
	if s.tokens.eventValidation != "" {
		form.Set(fieldEventValidation, s.tokens.eventValidation)
	}
	form.Set(radioGroup, controlRadioKhewat)
	form.Set(controlDistrict, s.target.DistrictCode)
	form.Set(controlTehsil, s.target.TehsilCode)
	form.Set(controlVillage, s.target.VillageCode)
	form.Set(controlPeriod, s.target.Period)
	form.Set(controlKhewat, strconv.Itoa(khewat))
	form.Set(controlSubmit, submitValue)

	start := time.Now()
	resp, err := s.client.PostForm(s.formPath, form)
	elapsed := time.Since(start)

	if err != nil {
		if isTimeout(err) {
			return FetchResult{Outcome: OutcomeFailed, Error: "Timeout", Elapsed: elapsed}
		}
		return FetchResult{Outcome: OutcomeFailed, Error: err.Error(), Elapsed: elapsed}
	}
	defer resp.Body.Close()

	result := FetchResult{Outcome: OutcomeFailed, StatusCode: resp.StatusCode, Elapsed: elapsed}

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return result
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = fmt.Sprintf("read error: %v", err)
		return result
	}
	lower := strings.ToLower(string(body))

	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = strings.ToLower(resp.Request.URL.String())
	}
	if containsAny(finalURL, loginURLMarkers) || containsAny(lower, loginContentMarkers) {
		s.expired = true
		result.Outcome = OutcomeSessionExpired
		result.Error = "session expired"
		return result
	}

	if containsAny(lower, noRecordMarkers) {
		// Still on the form page; pick up the refreshed tokens.
		_ = s.parseTokens(string(body))
		result.Error = "No record found"
		result.Permanent = true
		return result
	}

	if containsAny(lower, errorPageMarkers) {
		s.formReady = false
		result.Error = "Error page - needs retry"
		return result
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		if check := s.validate.ValidatePDFBytes(body); check.Status == validator.StatusInvalid {
			result.Error = fmt.Sprintf("invalid PDF response: %s", check.Message)
			return result
		}
		path, err := s.writer.SavePDF(khewat, body)
		if err != nil {
			result.Error = fmt.Sprintf("save failed: %v", err)
			return result
		}
		s.formReady = false
		result.Outcome = OutcomeSaved
		result.Path = path
		result.Bytes = int64(len(body))
		return result
	}

	if len(body) > minRecordHTMLSize && strings.Contains(lower, recordMarker) {
		if check := s.validate.ValidateHTMLContent(string(body)); check.Status == validator.StatusInvalid {
			result.Error = fmt.Sprintf("invalid record page: %s", check.Message)
			return result
		}
		path, err := s.writer.SaveHTML(khewat, body)
		if err != nil {
			result.Error = fmt.Sprintf("save failed: %v", err)
			return result
		}
		// Viewing the record navigates away from the selection state.
		s.formReady = false
		result.Outcome = OutcomeSaved
		result.Path = path
		result.Bytes = int64(len(body))
		return result
	}

	// An unrecognized response means the form state is unknown; force a
	// fresh selection sequence before the next fetch.
	s.formReady = false
	result.Error = fmt.Sprintf("Small response: %d bytes", len(body))
	return result
}

// selection builds the cumulative form fields for one setup step
func (s *FormSession) selection(district, tehsil, village, period string) map[string]string {
	return map[string]string{
		radioGroup:      controlRadioKhewat,
		controlDistrict: orDefault(district, "-1"),
		controlTehsil:   tehsil,
		controlVillage:  village,
		controlPeriod:   period,
	}
}

// postback submits an ASP.NET postback with the current tokens and
// returns the response body
func (s *FormSession) postback(eventTarget string, fields map[string]string) (string, error) {
	form := url.Values{}
	form.Set(fieldEventTarget, eventTarget)
	form.Set(fieldEventArgument, "")
	form.Set(fieldLastFocus, "")
	form.Set(fieldViewState, s.tokens.viewState)
	form.Set(fieldViewStateGenerator, s.tokens.viewStateGenerator)
	form.Set(fieldViewStateEncrypted, "")
	if s.tokens.eventValidation != "" {
		form.Set(fieldEventValidation, s.tokens.eventValidation)
	}
	for key, value := range fields {
		form.Set(key, value)
	}

	resp, err := s.client.PostForm(s.formPath, form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Type: ErrorTypeServerError, Message: "postback rejected", Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read postback response: %w", err)
	}
	return string(body), nil
}

// parseTokens extracts the hidden ASP.NET fields from a response body.
// Viewstate and generator are mandatory, event validation is optional.
func (s *FormSession) parseTokens(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &Error{Type: ErrorTypeParsing, Message: fmt.Sprintf("HTML parse failed: %v", err)}
	}

	viewState, vsOK := doc.Find("input[name='" + fieldViewState + "']").Attr("value")
	generator, genOK := doc.Find("input[name='" + fieldViewStateGenerator + "']").Attr("value")
	if !vsOK || !genOK {
		return &Error{Type: ErrorTypeParsing, Message: "viewstate tokens not found"}
	}

	validation, _ := doc.Find("input[name='" + fieldEventValidation + "']").Attr("value")

	s.tokens = tokens{
		viewState:          viewState,
		viewStateGenerator: generator,
		eventValidation:    validation,
	}
	return nil
}

// loggedIn checks whether a form page body belongs to an authenticated
// session: login markers mean no, the district dropdown means yes
func (s *FormSession) loggedIn(html string) bool {
	lower := strings.ToLower(html)
	if containsAny(lower, loginURLMarkers) || containsAny(lower, loginContentMarkers) {
		return false
	}
	return strings.Contains(html, controlDistrict)
}

// dumpDebugHTML persists a raw response for offline inspection and
// returns the file path, or empty string when the write fails
func (s *FormSession) dumpDebugHTML(html string) string {
	path := filepath.Join(s.debugDir, debugFormFile)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		s.logger.WarnWithFields("failed to save debug HTML", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return ""
	}
	return path
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
