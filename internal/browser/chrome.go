package browser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// pathCandidates lists well-known browser install locations per OS
var pathCandidates = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
	},
	"linux": {
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/usr/bin/microsoft-edge",
		"/usr/bin/brave-browser",
	},
}

// windowsSuffixes are joined onto the Program Files style roots
var windowsSuffixes = []string{
	`Google\Chrome\Application\chrome.exe`,
	`Chromium\Application\chrome.exe`,
	`Microsoft\Edge\Application\msedge.exe`,
}

// pathNames are looked up in PATH when no install location matched
var pathNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
}

// FindChrome returns the browser executable to launch. An explicit path
// wins, then CHROME_PATH, then well-known locations, then PATH. An empty
// result lets chromedp fall back to its own lookup.
func FindChrome(explicit string) string {
	if explicit != "" {
		if isExecutable(explicit) {
			return explicit
		}
		log.Warn().Str("path", explicit).Msg("Configured chrome path is not executable")
	}
	if path := os.Getenv("CHROME_PATH"); path != "" {
		if isExecutable(path) {
			log.Debug().Str("path", path).Msg("Chrome found via CHROME_PATH")
			return path
		}
		log.Warn().Str("path", path).Msg("CHROME_PATH set but not executable")
	}

	for _, path := range candidates(runtime.GOOS) {
		if isExecutable(path) {
			log.Debug().Str("path", path).Str("os", runtime.GOOS).Msg("Chrome found at standard location")
			return path
		}
	}

	for _, name := range pathNames {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Chrome found in PATH")
			return path
		}
	}

	log.Warn().Str("os", runtime.GOOS).Msg("Chrome not found, using chromedp default")
	return ""
}

func candidates(goos string) []string {
	out := append([]string(nil), pathCandidates[goos]...)
	switch goos {
	case "windows":
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LocalAppData"} {
			base := os.Getenv(env)
			if base == "" {
				continue
			}
			for _, suffix := range windowsSuffixes {
				out = append(out, filepath.Join(base, suffix))
			}
		}
	case "darwin", "linux":
		if home, err := os.UserHomeDir(); err == nil {
			if goos == "darwin" {
				out = append(out, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"))
			} else {
				out = append(out,
					filepath.Join(home, ".local/share/flatpak/exports/bin/com.google.Chrome"),
					filepath.Join(home, ".local/share/flatpak/exports/bin/org.chromium.Chromium"),
				)
			}
		}
	}
	return out
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}
