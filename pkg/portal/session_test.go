package portal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jamabandi/pkg/logger"
)

// captureWriter records artifact saves without touching disk
type captureWriter struct {
	htmlSaves []int
	pdfSaves  []int
}

func (w *captureWriter) SaveHTML(khewat int, body []byte) (string, error) {
	w.htmlSaves = append(w.htmlSaves, khewat)
	return fmt.Sprintf("nakal_khewat_%04d.html", khewat), nil
}

func (w *captureWriter) SavePDF(khewat int, body []byte) (string, error) {
	w.pdfSaves = append(w.pdfSaves, khewat)
	return fmt.Sprintf("nakal_khewat_%04d.pdf", khewat), nil
}

// formPage renders a minimal ASP.NET form page with the given viewstate
func formPage(viewstate string, withKhewat bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><form id="form1">`)
	fmt.Fprintf(&b, `<input type="hidden" name="__VIEWSTATE" value="%s" />`, viewstate)
	b.WriteString(`<input type="hidden" name="__VIEWSTATEGENERATOR" value="GEN01" />`)
	b.WriteString(`<input type="hidden" name="__EVENTVALIDATION" value="EV01" />`)
	b.WriteString(`<select name="ddldname"><option value="17">Rewari</option></select>`)
	if withKhewat {
		b.WriteString(`<select name="ddlkhewat"><option value="1">1</option></select>`)
	}
	b.WriteString(`</form></body></html>`)
	return b.String()
}

func testTarget() Target {
	return Target{DistrictCode: "17", TehsilCode: "102", VillageCode: "02556", Period: "2022-2023"}
}

func newTestSession(t *testing.T, handler http.Handler) (*FormSession, *captureWriter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, SessionCookieName, "test-cookie", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	writer := &captureWriter{}
	session := NewFormSession(client, testTarget(), writer, FormPath, t.TempDir(), time.Millisecond, logger.NewNopLogger())
	return session, writer, server
}

func TestInitializeForm(t *testing.T) {
	var gotCookie string
	session, _, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(SessionCookieName); err == nil {
			gotCookie = c.Value
		}
		fmt.Fprint(w, formPage("VS01", false))
	}))

	require.NoError(t, session.InitializeForm())
	assert.Equal(t, "test-cookie", gotCookie, "session cookie should accompany the form load")
	assert.False(t, session.Ready(), "form is loaded but selections are not configured yet")
}

func TestInitializeFormLoginBounce(t *testing.T) {
	session, _, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Please Enter Mobile number to continue</body></html>`)
	}))

	err := session.InitializeForm()
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, session.Expired())
}

func TestInitializeFormMissingTokens(t *testing.T) {
	session, _, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><select name="ddldname"></select></body></html>`)
	}))

	err := session.InitializeForm()
	require.Error(t, err)

	var portalErr *Error
	require.ErrorAs(t, err, &portalErr)
	assert.Equal(t, ErrorTypeParsing, portalErr.Type)
}

func TestSetupFormSelections(t *testing.T) {
	var targets []string
	var viewstates []string
	step := 0

	session, _, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, formPage("VS0", false))
			return
		}
		require.NoError(t, r.ParseForm())
		targets = append(targets, r.PostFormValue("__EVENTTARGET"))
		viewstates = append(viewstates, r.PostFormValue("__VIEWSTATE"))

		switch r.PostFormValue("__EVENTTARGET") {
		case controlDistrict:
			assert.Equal(t, "17", r.PostFormValue("ddldname"))
			assert.Empty(t, r.PostFormValue("ddltname"))
		case controlPeriod:
			assert.Equal(t, "17", r.PostFormValue("ddldname"))
			assert.Equal(t, "102", r.PostFormValue("ddltname"))
			assert.Equal(t, "02556", r.PostFormValue("ddlvname"))
			assert.Equal(t, "2022-2023", r.PostFormValue("ddlPeriod"))
		}

		step++
		fmt.Fprint(w, formPage(fmt.Sprintf("VS%d", step), step == 5))
	}))

	require.NoError(t, session.InitializeForm())
	require.NoError(t, session.SetupFormSelections())

	assert.Equal(t, []string{controlRadioKhewat, controlDistrict, controlTehsil, controlVillage, controlPeriod}, targets)
	// Each postback must carry the viewstate from the previous response.
	assert.Equal(t, []string{"VS0", "VS1", "VS2", "VS3", "VS4"}, viewstates)
	assert.True(t, session.Ready())
}

func TestSetupFormSelectionsMissingSelector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, formPage("VS", false))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "", "cookie", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	debugDir := t.TempDir()
	session := NewFormSession(client, testTarget(), &captureWriter{}, "", debugDir, time.Millisecond, logger.NewNopLogger())

	require.NoError(t, session.InitializeForm())
	err = session.SetupFormSelections()
	require.Error(t, err)
	assert.False(t, session.Ready())

	// The final response should have been dumped for inspection.
	_, statErr := os.Stat(filepath.Join(debugDir, debugFormFile))
	assert.NoError(t, statErr)
}

// scriptedHandler serves the form setup sequence and then delegates the
// record submission to fetchResponse
func scriptedHandler(t *testing.T, fetchResponse http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, formPage("VS", false))
			return
		}
		require.NoError(t, r.ParseForm())
		if r.PostFormValue("Cmdnakal") != "" {
			fetchResponse(w, r)
			return
		}
		withKhewat := r.PostFormValue("__EVENTTARGET") == controlPeriod
		fmt.Fprint(w, formPage("VS", withKhewat))
	})
}

func configureSession(t *testing.T, fetchResponse http.HandlerFunc) (*FormSession, *captureWriter) {
	t.Helper()
	session, writer, _ := newTestSession(t, scriptedHandler(t, fetchResponse))
	require.NoError(t, session.InitializeForm())
	require.NoError(t, session.SetupFormSelections())
	return session, writer
}

func TestFetchRecordSavesLargeHTML(t *testing.T) {
	record := "<html><body>Nakal record " + strings.Repeat("x", 11000) + "</body></html>"
	session, writer := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.PostFormValue("ddlkhewat"))
		fmt.Fprint(w, record)
	})

	result := session.FetchRecord(42)
	require.Equal(t, OutcomeSaved, result.Outcome)
	assert.Equal(t, []int{42}, writer.htmlSaves)
	assert.Equal(t, int64(len(record)), result.Bytes)
	assert.False(t, session.Ready(), "viewing a record navigates away, form must be re-configured")
}

func TestFetchRecordSavesPDF(t *testing.T) {
	session, writer := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})

	result := session.FetchRecord(7)
	require.Equal(t, OutcomeSaved, result.Outcome)
	assert.Equal(t, []int{7}, writer.pdfSaves)
	assert.Empty(t, writer.htmlSaves)
}

func TestFetchRecordNoRecordIsPermanent(t *testing.T) {
	session, writer := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, formPage("VSNEW", true)+"No Record Found")
	})

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.True(t, result.Permanent)
	assert.Equal(t, "No record found", result.Error)
	assert.Empty(t, writer.htmlSaves)
}

func TestFetchRecordErrorPageClearsFormReady(t *testing.T) {
	session, _ := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Some error has occured. Please try again.</body></html>")
	})

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.False(t, result.Permanent)
	assert.False(t, session.Ready())
	assert.False(t, session.Expired(), "error page is transient, not session-fatal")
}

func TestFetchRecordLoginBodyExpiresSession(t *testing.T) {
	session, _ := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta http-equiv="refresh" content="0;url=/login.aspx"></head></html>`)
	})

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeSessionExpired, result.Outcome)
	assert.True(t, session.Expired())
}

func TestFetchRecordNon200IsTransient(t *testing.T) {
	session, _ := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.False(t, result.Permanent)
	assert.Equal(t, "HTTP 502", result.Error)
}

func TestFetchRecordSmallResponseIsTransient(t *testing.T) {
	session, writer := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>tiny</body></html>")
	})

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.False(t, result.Permanent)
	assert.Contains(t, result.Error, "Small response")
	assert.Empty(t, writer.htmlSaves)
	assert.False(t, session.Ready(), "unrecognized response leaves the form state unknown")
}

func TestFetchRecordTimedOutPageExpiresSession(t *testing.T) {
	session, writer := configureSession(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Your session has timed out. Please login again to continue.</body></html>")
	})

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeSessionExpired, result.Outcome)
	assert.True(t, session.Expired())
	assert.Empty(t, writer.htmlSaves)
}

func TestFetchRecordLoginRedirectURLExpiresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/", scriptedHandler(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Sign in</body></html>")
	})
	session, _, _ := newTestSession(t, mux)
	require.NoError(t, session.InitializeForm())
	require.NoError(t, session.SetupFormSelections())

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeSessionExpired, result.Outcome)
	assert.True(t, session.Expired())
}

func TestFetchRecordTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.PostFormValue("Cmdnakal") == "" {
			withKhewat := r.PostFormValue("__EVENTTARGET") == controlPeriod
			fmt.Fprint(w, formPage("VS", withKhewat))
			return
		}
		// Park until the client gives up; the request context unblocks
		// the handler so server shutdown is not held hostage.
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "", "cookie", 100*time.Millisecond, logger.NewNopLogger())
	require.NoError(t, err)
	session := NewFormSession(client, testTarget(), &captureWriter{}, "", t.TempDir(), time.Millisecond, logger.NewNopLogger())
	require.NoError(t, session.InitializeForm())
	require.NoError(t, session.SetupFormSelections())

	result := session.FetchRecord(3)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "Timeout", result.Error)
	assert.False(t, session.Expired(), "a timeout does not invalidate the session")
}
