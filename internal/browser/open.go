package browser

import (
	"fmt"
	"io"
	"net/url"

	"github.com/pkg/browser"
)

func init() {
	// The widget owns the terminal; the launcher's chatter must not leak
	// into the rendered frame.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// Open opens an http(s) URL in the user's default browser.
func Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open %q: unsupported scheme", rawURL)
	}
	if err := browser.OpenURL(u.String()); err != nil {
		return fmt.Errorf("opening %s: %w", u, err)
	}
	return nil
}
