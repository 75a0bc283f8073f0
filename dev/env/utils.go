package devenv

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

const (
	moduleName  = "palmstat-backend"
	statePrefix = "<dev_state>"
	// StateDirEnv replaces dev/.state, deployed binaries have no checkout to
	// find it in.
	StateDirEnv = "PALMSTAT_STATE_DIR"
)

var moduleLine = regexp.MustCompile(`(?m)^module\s+(\S+)\s*$`)

func declaresModule(dir string) bool {
	mod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return false
	}
	m := moduleLine.FindSubmatch(mod)
	return m != nil && string(m[1]) == moduleName
}

var workspaceRoot = sync.OnceValues(func() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if declaresModule(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
})

// GetWorkspaceRoot returns the closest directory above the working directory
// whose go.mod declares this module.
func GetWorkspaceRoot() (string, error) {
	return workspaceRoot()
}

// StateDir is $PALMSTAT_STATE_DIR when set, otherwise <workspace root>/dev/.state.
// The directory is created if needed.
func StateDir() (string, error) {
	dir := os.Getenv(StateDirEnv)
	if dir == "" {
		root, err := GetWorkspaceRoot()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(root, "dev", ".state")
	}
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// ResolvePath expands a leading "<dev_state>" to StateDir, any other path is
// returned as is.
func ResolvePath(path string) (string, error) {
	rest, ok := strings.CutPrefix(filepath.ToSlash(path), statePrefix)
	if !ok {
		return path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(rest, "/"))), nil
}
