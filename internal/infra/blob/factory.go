// Package blob selects a snapshot-archive backend from the environment.
package blob

import (
	"context"
	"fmt"
	"os"

	"cliniccore/internal/infra/blob/core"
	"cliniccore/internal/infra/blob/fs"
	"cliniccore/internal/infra/blob/memory"
	"cliniccore/internal/infra/blob/s3"
)

type (
	// Store aliases core.Store.
	Store = core.Store
	// Info aliases core.Info.
	Info = core.Info
	// PutOptions aliases core.PutOptions.
	PutOptions = core.PutOptions
	// Driver aliases core.Driver.
	Driver = core.Driver
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Open constructs an archive store from environment configuration.
//
//	CLINICCORE_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	CLINICCORE_ARCHIVE_FS_ROOT: root dir for the fs driver (default ./archivedata)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("CLINICCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fs.New(os.Getenv("CLINICCORE_ARCHIVE_FS_ROOT"))
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
