// Package pkg provides shared utilities for the softrng driver.
//
// This package contains common functionality used by the register, bus,
// driver and transport layers, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for lifecycle and request failures
//   - The [Status] codes reported on the request channel
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDriver, "device attached", "addr", "0000:00:04.0")
//
// # Errors
//
// Lifecycle failures wrap one of [ErrEnableFailed], [ErrRegionClaimFailed]
// or [ErrMappingFailed]. Request failures are [ErrNotReady],
// [ErrUnsupportedRequest] or [ErrTransferFault]; [StatusOf] converts them to
// wire codes and [Status.Error] converts back.
package pkg
