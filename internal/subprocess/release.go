package subprocess

import (
	stderrors "errors"
	"io"
)

// ReleaseFunc adapts a function to io.Closer for use as a release callback.
type ReleaseFunc func() error

// Close implements io.Closer.
func (f ReleaseFunc) Close() error { return f() }

// Releases combines release callbacks into one closer. Nil entries are
// skipped; every callback runs even if an earlier one fails.
func Releases(closers ...io.Closer) io.Closer {
	return ReleaseFunc(func() error {
		var errs []error

		for _, c := range closers {
			if c == nil {
				continue
			}

			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		return stderrors.Join(errs...)
	})
}
