//go:build !unix

package store

// lockFile is a no-op where flock(2) is unavailable; concurrent writers from
// separate processes may then lose updates.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
