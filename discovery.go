package forkchannel

import (
	"context"
	"log/slog"

	"github.com/wagiedev/forkchannel-go/internal/cli"
)

// DiscoverWorker locates a worker binary. An explicit path is used as is;
// otherwise name is searched in PATH, then in searchDirs. Without searchDirs
// the directories of DefaultSearchDirs are checked.
// Returns WorkerNotFoundError listing the searched paths.
func DiscoverWorker(ctx context.Context, name, path string, log *slog.Logger, searchDirs ...string) (string, error) {
	if len(searchDirs) == 0 {
		searchDirs = nil
	}

	return cli.NewDiscoverer(&cli.Config{
		Name:       name,
		WorkerPath: path,
		SearchDirs: searchDirs,
		Logger:     log,
	}).Discover(ctx)
}

// DefaultSearchDirs returns the install directories checked after PATH.
func DefaultSearchDirs() []string {
	return cli.DefaultSearchDirs()
}
