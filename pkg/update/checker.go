// Package update checks GitHub releases for a newer version of the
// tool. The check is advisory: any failure is reported as "no update"
// so startup is never blocked by GitHub being unreachable.
package update

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jamabandi/pkg/logger"
)

const (
	githubOwner = "jamabandi-tools"
	githubRepo  = "jamabandi"

	releasesAPIURL  = "https://api.github.com/repos/" + githubOwner + "/" + githubRepo + "/releases/latest"
	releasesPageURL = "https://github.com/" + githubOwner + "/" + githubRepo + "/releases/latest"

	checkTimeout = 5 * time.Second
)

// Info is the result of a version check
type Info struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// Checker queries the GitHub releases API
type Checker struct {
	currentVersion string
	apiURL         string
	httpClient     *http.Client
	logger         logger.Logger
}

// NewChecker creates a release checker for the given running version
func NewChecker(currentVersion string, log logger.Logger) *Checker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Checker{
		currentVersion: currentVersion,
		apiURL:         releasesAPIURL,
		httpClient:     &http.Client{Timeout: checkTimeout},
		logger:         log,
	}
}

// Check fetches the latest release and compares versions. Network or
// parse failures return a no-update Info and a non-nil error.
func (c *Checker) Check() (Info, error) {
	info := Info{
		CurrentVersion: normalizeVersion(c.currentVersion),
		LatestVersion:  normalizeVersion(c.currentVersion),
		ReleaseURL:     releasesPageURL,
	}

	req, err := http.NewRequest(http.MethodGet, c.apiURL, nil)
	if err != nil {
		return info, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("update check failed", map[string]interface{}{"error": err.Error()})
		return info, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("releases API returned HTTP %d", resp.StatusCode)
		c.logger.DebugWithFields("update check failed", map[string]interface{}{"status": resp.StatusCode})
		return info, err
	}

	var release struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return info, fmt.Errorf("failed to decode release: %w", err)
	}

	info.LatestVersion = normalizeVersion(release.TagName)
	if release.HTMLURL != "" {
		info.ReleaseURL = release.HTMLURL
	}
	info.UpdateAvailable = isNewer(info.LatestVersion, info.CurrentVersion)

	if info.UpdateAvailable {
		c.logger.InfoWithFields("update available", map[string]interface{}{
			"current": info.CurrentVersion,
			"latest":  info.LatestVersion,
		})
	}

	return info, nil
}

// CheckAsync runs the check in the background and delivers the result
// to the callback only when an update is available
func (c *Checker) CheckAsync(callback func(Info)) {
	go func() {
		info, err := c.Check()
		if err == nil && info.UpdateAvailable {
			callback(info)
		}
	}()
}

// normalizeVersion strips a leading "v" and surrounding whitespace
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewer compares dotted numeric versions. Non-numeric segments
// compare lexically so prerelease tags do not panic the comparison.
func isNewer(latest, current string) bool {
	if latest == "" || current == "" {
		return false
	}

	latestParts := strings.Split(latest, ".")
	currentParts := strings.Split(current, ".")

	for i := 0; i < len(latestParts) || i < len(currentParts); i++ {
		lp, cp := "0", "0"
		if i < len(latestParts) {
			lp = latestParts[i]
		}
		if i < len(currentParts) {
			cp = currentParts[i]
		}

		ln, lErr := strconv.Atoi(lp)
		cn, cErr := strconv.Atoi(cp)
		if lErr == nil && cErr == nil {
			if ln != cn {
				return ln > cn
			}
			continue
		}
		if lp != cp {
			return lp > cp
		}
	}

	return false
}
