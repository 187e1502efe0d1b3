// Package detect locates the Claude Code usage data and the ccusage
// executable on the workstation.
package detect

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/samber/lo"
)

// ClaudeDataDirs returns the existing Claude Code project directories, in
// the order ccusage itself searches them. CLAUDE_CONFIG_DIR may list several
// comma-separated roots and replaces the defaults when set.
func ClaudeDataDirs() []string {
	var roots []string
	if env := strings.TrimSpace(os.Getenv("CLAUDE_CONFIG_DIR")); env != "" {
		for _, r := range strings.Split(env, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roots = append(roots, r)
			}
		}
	} else if home := homeDir(); home != "" {
		roots = []string{
			filepath.Join(home, ".config", "claude"),
			filepath.Join(home, ".claude"),
		}
	}

	dirs := lo.Map(roots, func(r string, _ int) string { return filepath.Join(r, "projects") })
	return lo.Uniq(lo.Filter(dirs, func(d string, _ int) bool { return dirExists(d) }))
}

// FindBinary resolves name on PATH, then in the global install directories
// of common JavaScript package managers, which are often missing from PATH
// in non-login shells. Extra directories can be listed in
// CLAUDE_MONITOR_BIN_DIRS. It returns "" when nothing executable is found.
func FindBinary(name string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	if filepath.IsAbs(name) {
		return ""
	}
	for _, dir := range binDirs() {
		for _, candidate := range binaryNames(name) {
			path := filepath.Join(dir, candidate)
			if isExecutable(path) {
				return path
			}
		}
	}
	return ""
}

func binDirs() []string {
	var dirs []string
	if env := os.Getenv("CLAUDE_MONITOR_BIN_DIRS"); env != "" {
		dirs = append(dirs, filepath.SplitList(env)...)
	}
	home := homeDir()
	if home == "" {
		return dirs
	}
	dirs = append(dirs,
		filepath.Join(home, ".npm-global", "bin"),
		filepath.Join(home, ".bun", "bin"),
		filepath.Join(home, ".local", "share", "pnpm"),
		filepath.Join(home, ".volta", "bin"),
	)
	switch runtime.GOOS {
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/bin", "/usr/local/bin")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			dirs = append(dirs, filepath.Join(appData, "npm"))
		}
	default:
		dirs = append(dirs, "/usr/local/bin")
	}
	return dirs
}

func binaryNames(name string) []string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return []string{name + ".cmd", name + ".exe", name}
	}
	return []string{name}
}

func homeDir() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
