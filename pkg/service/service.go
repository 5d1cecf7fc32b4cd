// Package service is the domain facade: stateless entry points over the
// device pool, the attendance cache, object storage, and the HRIS
// directory. HTTP handlers and CLI commands call these and nothing
// deeper.
package service

import (
	"github.com/abcfood/fingerprint-bridge/pkg/cache"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/hris"
	"github.com/abcfood/fingerprint-bridge/pkg/storage"
)

// Service bundles the facade's collaborators. store and directory are nil
// when S3 or the HRIS are not configured; operations needing them fail
// with ErrNotConfigured.
type Service struct {
	pool      *device.Pool
	cache     *cache.Cache
	store     *storage.BackupStore
	directory hris.Directory
}

// New builds the facade. pool and cache are required.
func New(pool *device.Pool, c *cache.Cache, store *storage.BackupStore, directory hris.Directory) *Service {
	return &Service{pool: pool, cache: c, store: store, directory: directory}
}

// Pool exposes the device registry for read-only callers (routing, CLI
// tables).
func (s *Service) Pool() *device.Pool {
	return s.pool
}

// Cache exposes the attendance cache for status reporting.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}
