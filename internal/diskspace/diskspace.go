// Package diskspace reports free disk space for a database's storage
// paths via github.com/shirou/gopsutil, so callers can refuse writes
// before the filesystem does it for them less gracefully.
package diskspace

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// FreeGB returns the free space, in gigabytes, on the filesystem
// containing path.
func FreeGB(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("diskspace: usage for %s: %w", path, err)
	}
	return float64(usage.Free) / 1e9, nil
}

// Check returns an error if the free space under path drops below
// minimumFreeGB. A minimumFreeGB of 0 disables the check.
func Check(path string, minimumFreeGB uint, log *logrus.Logger) error {
	if minimumFreeGB == 0 {
		return nil
	}
	free, err := FreeGB(path)
	if err != nil {
		return err
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"path":            path,
			"free_gb":         free,
			"minimum_free_gb": minimumFreeGB,
		}).Debug("disk space check")
	}
	if free < float64(minimumFreeGB) {
		return fmt.Errorf("diskspace: only %.2fGB free under %s, below the configured minimum of %dGB", free, path, minimumFreeGB)
	}
	return nil
}
