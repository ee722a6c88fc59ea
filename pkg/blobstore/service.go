package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/vango-dev/photon/pkg/rmi"
	"github.com/vango-dev/photon/pkg/variant"
)

// Method names.
const (
	MethodPut    = "blob.put"
	MethodGet    = "blob.get"
	MethodDelete = "blob.delete"
	MethodList   = "blob.list"
)

// Service exposes a Store as remote methods.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a service over store. A nil logger uses
// slog.Default() with component=blobstore.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default().With("component", "blobstore")
	}
	return &Service{store: store, logger: logger}
}

// Register adds the blob methods to reg.
func (s *Service) Register(reg *rmi.Registry) error {
	bindings := map[string]*rmi.Binding{
		MethodPut:    rmi.Func2(s.put),
		MethodGet:    rmi.Func1(s.get),
		MethodDelete: rmi.Func1(s.delete),
		MethodList:   rmi.Func1(s.list),
	}
	for _, name := range []string{MethodPut, MethodGet, MethodDelete, MethodList} {
		if err := reg.Register(name, bindings[name]); err != nil {
			return err
		}
	}
	return nil
}

// Register is shorthand for NewService(store, nil).Register(reg).
func Register(reg *rmi.Registry, store Store) error {
	return NewService(store, nil).Register(reg)
}

func (s *Service) put(ctx context.Context, key string, data []byte) (uint32, error) {
	if key == "" {
		return 0, errors.New("empty key")
	}
	if uint64(len(data)) > math.MaxUint32 {
		return 0, fmt.Errorf("blob too large: %d bytes", len(data))
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		return 0, s.storeError(key, err)
	}
	s.logger.Debug("blob stored", "key", key, "bytes", len(data))
	return uint32(len(data)), nil
}

func (s *Service) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, s.storeError(key, err)
	}
	return data, nil
}

func (s *Service) delete(ctx context.Context, key string) (rmi.Void, error) {
	if err := s.store.Delete(ctx, key); err != nil {
		return rmi.Void{}, s.storeError(key, err)
	}
	s.logger.Debug("blob deleted", "key", key)
	return rmi.Void{}, nil
}

func (s *Service) list(ctx context.Context, prefix string) (variant.Array, error) {
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, s.storeError(prefix, err)
	}
	out := make(variant.Array, len(keys))
	for i, key := range keys {
		out[i] = variant.NewString(key)
	}
	return out, nil
}

// storeError turns a store failure into the fault text sent to callers.
func (s *Service) storeError(key string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("blob not found: %s", key)
	}
	s.logger.Warn("store failed", "key", key, "error", err)
	return err
}
