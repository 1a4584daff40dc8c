package remoteapp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"
)

// MaxSourceBytes is the hard size bound on a fetched main file (spec.md
// §4.7c).
const MaxSourceBytes = 1 << 20 // 1 MiB

var httpClient = &http.Client{Timeout: 10 * time.Second}

// rawContentURL builds the raw-file URL for ref/file, the same
// owner/repo/branch/subpath addressing scheme spec.md §4.7b describes.
// Grounded on importmap.Manager.Download's plain http.Get + status check.
func rawContentURL(ref Ref, file string) string {
	p := path.Join(ref.Owner, ref.Repo, ref.Branch, ref.Subpath, file)
	return fmt.Sprintf("https://%s/raw/%s", ref.Host, p)
}

// Manifest is the declared metadata of a remote app module (spec.md §4.7b).
type Manifest struct {
	Main         string   `json:"main"`
	Dependencies []string `json:"dependencies"`
}

// defaultMain is used when no manifest is present or main isn't declared.
func defaultMain() string { return "index.js" }

// FetchManifest retrieves package-manifest for ref. A fetch failure is
// recoverable per spec.md §4.7b: callers should fall back to defaultMain()
// rather than aborting the install.
func FetchManifest(ref Ref) (*Manifest, error) {
	resp, err := httpClient.Get(rawContentURL(ref, "package-manifest"))
	if err != nil {
		return nil, fmt.Errorf("remoteapp: manifest fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remoteapp: manifest fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("remoteapp: manifest read: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("remoteapp: manifest parse: %w", err)
	}
	if m.Main == "" {
		m.Main = defaultMain()
	}
	return &m, nil
}

// IntersectAllowedDeps keeps only declared dependencies that are on the
// module allow-list (spec.md §4.7b/f); anything else is silently dropped,
// since an app that never calls require() for a disallowed module is still
// a valid app.
func IntersectAllowedDeps(declared []string) []string {
	var out []string
	for _, d := range declared {
		if _, ok := AllowedModules[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// FetchSource retrieves the raw text of file, rejecting on HTTP failure or
// size overrun (spec.md §4.7c). The body is read with a hard limit one byte
// past MaxSourceBytes so an over-size file is detected without buffering an
// unbounded response first.
func FetchSource(ref Ref, file string) (string, error) {
	resp, err := httpClient.Get(rawContentURL(ref, file))
	if err != nil {
		return "", fmt.Errorf("remoteapp: source fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remoteapp: source fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes+1))
	if err != nil {
		return "", fmt.Errorf("remoteapp: source read: %w", err)
	}
	if len(body) > MaxSourceBytes {
		return "", fmt.Errorf("remoteapp: source exceeds %d bytes", MaxSourceBytes)
	}
	return string(body), nil
}
