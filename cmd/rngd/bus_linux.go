//go:build linux

package main

import (
	"github.com/ardnew/softrng/bus"
	"github.com/ardnew/softrng/bus/linux"
	"github.com/ardnew/softrng/config"
)

func newPlatformBus(cfg *config.Config) (bus.Bus, error) {
	return linux.New(linux.Options{Root: cfg.Device.Sysfs}), nil
}
