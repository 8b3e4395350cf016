package auth

import "fmt"

// ShowCookieExtractionGuide prints the manual steps for capturing the
// portal session cookie from a browser
func ShowCookieExtractionGuide() {
	fmt.Println(`
How to capture your jamabandi.nic.in session cookie
====================================================

The portal has no API login; the session cookie must be copied from a
browser after a manual OTP login.

1. Open https://jamabandi.nic.in/PublicNakal/CreateNewRequest in your
   browser.

2. Log in with your mobile number and the OTP you receive.

3. Open Developer Tools (F12 or Cmd+Option+I).

4. Find the cookie named "jamabandiID":
   - Chrome/Edge: Application tab -> Storage -> Cookies ->
     https://jamabandi.nic.in
   - Firefox: Storage tab -> Cookies -> https://jamabandi.nic.in
   - Safari: Storage tab -> Cookies (enable the Develop menu first)

5. Copy the cookie's Value column.

6. Supply it to the scraper, either:

   jamabandi auth login --cookie "<value>"

   or for a single run:

   export JAMABANDI_SESSION_COOKIE="<value>"
   jamabandi scrape --start 1 --end 100

Notes:
- The session expires server-side after a period of inactivity. When
  workers report "session expired", repeat these steps for a fresh
  cookie; completed records are never re-downloaded.
- Keep the cookie private. Anyone holding it can act as your login.`)
}

// ShowQuickExtractGuide prints the condensed version of the guide
func ShowQuickExtractGuide() {
	fmt.Println(`
Quick cookie extraction:
1. Log in at https://jamabandi.nic.in/PublicNakal/CreateNewRequest
2. DevTools (F12) -> Cookies -> jamabandi.nic.in -> jamabandiID
3. jamabandi auth login --cookie "<value>"`)
}
