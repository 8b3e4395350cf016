package portal

// Portal URL constants
const (
	// BaseURL is the land-records portal root
	BaseURL = "https://jamabandi.nic.in"

	// FormPath is the public nakal request form
	FormPath = "/PublicNakal/CreateNewRequest"
)

// SessionCookieName is the cookie carrying the manually obtained credential
const SessionCookieName = "jamabandiID"

// ASP.NET hidden form fields
const (
	fieldEventTarget        = "__EVENTTARGET"
	fieldEventArgument      = "__EVENTARGUMENT"
	fieldLastFocus          = "__LASTFOCUS"
	fieldViewState          = "__VIEWSTATE"
	fieldViewStateGenerator = "__VIEWSTATEGENERATOR"
	fieldViewStateEncrypted = "__VIEWSTATEENCRYPTED"
	fieldEventValidation    = "__EVENTVALIDATION"
)

// Form control names for the cascading selection sequence
const (
	controlRadioKhewat = "RdobtnKhewat"
	controlDistrict    = "ddldname"
	controlTehsil      = "ddltname"
	controlVillage     = "ddlvname"
	controlPeriod      = "ddlPeriod"
	controlKhewat      = "ddlkhewat"
	controlSubmit      = "Cmdnakal"
	submitValue        = "Nakal"

	// radioGroup is the radio button group name posted with every step
	radioGroup = "a"
)

// Content markers for response classification
const (
	// minRecordHTMLSize is the smallest HTML body accepted as a real record
	minRecordHTMLSize = 10000

	// recordMarker must appear in a record page body
	recordMarker = "nakal"

	// debugFormFile receives the raw response when form setup fails
	debugFormFile = "debug_form.html"
)

// loginURLMarkers in the final URL indicate a redirect to the login flow
var loginURLMarkers = []string{"login.aspx", "login.asp", "/login"}

// loginContentMarkers in the body indicate the session is no longer
// authenticated, even when the URL did not change
var loginContentMarkers = []string{
	"enter mobile",
	"session has timed out",
	"session expired",
	"please login",
	"please log in",
	"authentication required",
}

// noRecordMarkers indicate a true absence of data for the requested id
var noRecordMarkers = []string{"no record", "record not found"}

// errorPageMarkers indicate the portal's generic error page
var errorPageMarkers = []string{"error page", "some error has occured"}
