// Package pdf converts downloaded HTML record pages into paginated PDF
// documents. Two backends are supported: the wkhtmltopdf binary when it
// is installed, and a pure-Go table renderer as the fallback.
package pdf

import (
	"context"
	"os/exec"

	"jamabandi/pkg/logger"
)

// Backend converts one HTML artifact into a PDF document
type Backend interface {
	Name() string
	Convert(ctx context.Context, htmlPath, pdfPath string) error
}

// Backend names accepted in configuration
const (
	BackendWkhtmltopdf = "wkhtmltopdf"
	BackendNative      = "native"
)

// Detect picks the conversion backend. An explicit preference wins when
// usable; otherwise wkhtmltopdf is preferred for rendering fidelity,
// with the native renderer as the always-available fallback.
func Detect(preferred string, log logger.Logger) Backend {
	if log == nil {
		log = logger.GetLogger()
	}

	wkPath, wkErr := exec.LookPath("wkhtmltopdf")

	switch preferred {
	case BackendWkhtmltopdf:
		if wkErr == nil {
			return newWkhtmltopdf(wkPath, log)
		}
		log.Warn("wkhtmltopdf requested but not found, using native renderer")
		return newNative(log)
	case BackendNative:
		return newNative(log)
	}

	if wkErr == nil {
		return newWkhtmltopdf(wkPath, log)
	}
	return newNative(log)
}
