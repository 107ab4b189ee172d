package utils

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// SystemInfo holds information about the current system
type SystemInfo struct {
	OS            string
	Architecture  string
	ChromePresent bool
	ChromePath    string
	ChromeVersion string
	SpeechPath    string
	SpeechArgs    []string
}

// DetectSystem returns information about the current operating system and architecture
func DetectSystem() SystemInfo {
	return SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
}

// --------------------------------------
// CHROME CHECK
// --------------------------------------

// CheckChrome checks if google-chrome or chromium is installed
func CheckChrome() (bool, string) {
	// Try common binary names
	binaries := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
	}

	for _, bin := range binaries {
		path, err := exec.LookPath(bin)
		if err == nil {
			return true, path
		}
	}

	// Check common installation paths
	for _, path := range getCommonChromePaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}

	return false, ""
}

// getCommonChromePaths returns common Chrome/Chromium installation paths
func getCommonChromePaths(goos string) []string {
	switch goos {
	case "darwin": // macOS
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}

	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}

	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chromium.exe`,
			`C:\Program Files (x86)\Chromium\Application\chromium.exe`,
		}

	default:
		return []string{}
	}
}

// getChromeVersion attempts to get the version of Chrome/Chromium
func getChromeVersion(path string) string {
	cmd := exec.Command(path, "--version")
	output, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

// --------------------------------------
// SPEECH CHECK
// --------------------------------------

// speechCandidates are tried in order when no speech command is configured.
var speechCandidates = [][]string{
	{"espeak-ng", "-s", "150"},
	{"espeak", "-s", "150"},
	{"say", "-r", "170"},
}

// FindSpeechCommand resolves the text-to-speech program. A configured
// command line wins; otherwise the first installed candidate is used.
func FindSpeechCommand(configured string) (path string, args []string, ok bool) {
	candidates := speechCandidates
	if fields := strings.Fields(configured); len(fields) > 0 {
		candidates = [][]string{fields}
	}

	for _, c := range candidates {
		if p, err := exec.LookPath(c[0]); err == nil {
			return p, c[1:], true
		}
	}
	return "", nil, false
}

// --------------------------------------
// VALIDATION
// --------------------------------------

// ValidateSystemRequirements inspects the optional host tools and logs what
// is missing. Neither tool is required for printing.
func ValidateSystemRequirements(logger zerolog.Logger, speechCommand string) SystemInfo {
	sysInfo := DetectSystem()
	logger.Info().Str("os", sysInfo.OS).Str("arch", sysInfo.Architecture).Msg("System information")

	if present, path := CheckChrome(); present {
		sysInfo.ChromePresent = true
		sysInfo.ChromePath = path
		sysInfo.ChromeVersion = getChromeVersion(path)
		logger.Info().Str("path", path).Str("version", sysInfo.ChromeVersion).Msg("Chrome/Chromium found")
	} else {
		logger.Warn().Msg("Chrome / Chromium not found, receipt previews are disabled")
	}

	if path, args, ok := FindSpeechCommand(speechCommand); ok {
		sysInfo.SpeechPath = path
		sysInfo.SpeechArgs = args
		logger.Info().Str("path", path).Msg("Speech command found")
	} else {
		logger.Warn().Msg("No speech command found, voice announcements are disabled")
	}

	return sysInfo
}
