//go:build !unix

package htpasswd

// SyncDir is a no-op; directories cannot be synced on this platform.
func (osFS) SyncDir(dir string) error {
	return nil
}
