package cli

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wagiedev/forkchannel-go/internal/errors"
)

// Config holds configuration for worker discovery.
type Config struct {
	// Name is the worker binary name searched in PATH and SearchDirs.
	Name string

	// WorkerPath is an explicit worker path that skips the search.
	WorkerPath string

	// SearchDirs are checked in order after PATH.
	// Nil selects DefaultSearchDirs; an empty slice searches PATH only.
	SearchDirs []string

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// DefaultSearchDirs returns the install directories checked when a worker is
// not in PATH.
func DefaultSearchDirs() []string {
	dirs := []string{"/usr/local/bin", "/usr/bin"}

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "bin"))
	}

	return dirs
}

// Discoverer locates the worker binary.
type Discoverer interface {
	// Discover locates the worker binary.
	// Returns the path to the binary or an error.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg  *Config
	dirs []string
	log  *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new worker discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	dirs := cfg.SearchDirs
	if dirs == nil {
		dirs = DefaultSearchDirs()
	}

	return &discoverer{
		cfg:  cfg,
		dirs: dirs,
		log:  log.With("component", "worker_discovery"),
	}
}

// Discover resolves the worker binary: the explicit path if one is set,
// otherwise the first match in PATH or the search directories.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if d.cfg.WorkerPath != "" {
		return d.explicit()
	}

	d.log.Debug("Discovering worker binary", "name", d.cfg.Name, "search_dirs", d.dirs)

	candidates := d.candidates()
	searched := make([]string, 0, len(candidates))

	for _, c := range candidates {
		searched = append(searched, c.label)

		path, ok := c.resolve()
		if !ok {
			continue
		}

		d.log.Debug("Found worker binary", "worker_path", path, "source", c.label)

		return path, nil
	}

	err := &errors.WorkerNotFoundError{Name: d.cfg.Name, SearchedPaths: searched}
	d.log.Warn("Worker not found", "error", err)

	return "", err
}

func (d *discoverer) explicit() (string, error) {
	if isFile(d.cfg.WorkerPath) {
		return d.cfg.WorkerPath, nil
	}

	d.log.Debug("Explicit worker path not found", "worker_path", d.cfg.WorkerPath)

	return "", &errors.WorkerNotFoundError{Name: d.cfg.Name, SearchedPaths: []string{d.cfg.WorkerPath}}
}

// candidate is one place a worker may be installed. label is what a failed
// search reports.
type candidate struct {
	label   string
	resolve func() (string, bool)
}

func (d *discoverer) candidates() []candidate {
	name := d.cfg.Name

	out := make([]candidate, 0, len(d.dirs)+1)
	out = append(out, candidate{label: "$PATH", resolve: func() (string, bool) {
		path, err := exec.LookPath(name)

		return path, err == nil
	}})

	for _, dir := range d.dirs {
		path := filepath.Join(dir, name)
		out = append(out, candidate{label: path, resolve: func() (string, bool) {
			return path, isFile(path)
		}})
	}

	return out
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
