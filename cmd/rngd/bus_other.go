//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/config"
	"github.com/ardnew/softrng/pkg"
)

func newPlatformBus(*config.Config) (bus.Bus, error) {
	return nil, fmt.Errorf("no PCI bus on %s, use --simulate: %w", runtime.GOOS, pkg.ErrNoDevice)
}
