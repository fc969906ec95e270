// Package blob re-exports the blob storage abstractions and selects a
// backend driver from the environment.
package blob

import (
	"context"
	"fmt"
	"os"

	"pharmxchain/internal/blob/core"
	fsstore "pharmxchain/internal/blob/fs"
	memorystore "pharmxchain/internal/blob/memory"
	s3store "pharmxchain/internal/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures explicit S3 store construction.
	S3Config = s3store.Config
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation isn't supported by a driver.
var ErrUnsupported = core.ErrUnsupported

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem constructs a filesystem-backed Store rooted at path.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// NewS3 constructs an S3-backed Store from explicit configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3store.New(ctx, cfg) }

// OpenS3FromEnv constructs an S3-backed Store from PHARMX_BLOB_S3_* variables.
func OpenS3FromEnv(ctx context.Context) (Store, error) { return s3store.OpenFromEnv(ctx) }

// NewMockS3ForTests exposes the in-memory S3 mock for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }

// Open selects a Store implementation using environment variables.
//
//	PHARMX_BLOB_DRIVER: fs|s3|memory (default fs)
//	PHARMX_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("PHARMX_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("PHARMX_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
