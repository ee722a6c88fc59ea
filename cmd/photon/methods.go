package main

import (
	"context"

	"github.com/vango-dev/photon/pkg/rmi"
)

// Built-in methods served next to the blob methods.
const (
	methodEcho      = "echo"
	methodEchoBytes = "echo.bytes"
)

func registerBuiltins(reg *rmi.Registry) error {
	if err := reg.Register(methodEcho, rmi.Func1(func(_ context.Context, s string) (string, error) {
		return s, nil
	})); err != nil {
		return err
	}
	return reg.Register(methodEchoBytes, rmi.Func1(func(_ context.Context, b []byte) ([]byte, error) {
		return b, nil
	}))
}
