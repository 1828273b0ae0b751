// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package telemetry provides the named, level-tagged logging sinks
// spec.md §1 calls for ("Logging: treated as named, level-tagged
// sinks"), one *logrus.Entry per component, matching
// rancher/elemental-toolkit's use of github.com/sirupsen/logrus.
package telemetry

import "github.com/sirupsen/logrus"

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// For returns the named sink for component, e.g. telemetry.For("fortuna").
// Every call with the same name returns an entry carrying the same
// "component" field, so log aggregation can group by it.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// SetLevel adjusts the shared base logger's level.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// EntropyStarvation logs spec.md §7's "Entropy starvation" error kind:
// not fatal, the consumer substitutes instant entropy.
func EntropyStarvation(component, detail string) {
	For(component).WithField("kind", "entropy-starvation").Warn(detail)
}

// StorageFailure logs spec.md §7's "Storage failure" error kind.
func StorageFailure(component, key string, err error) {
	For(component).WithField("kind", "storage-failure").WithField("key", key).Error(err)
}

// NetworkFailure logs spec.md §7's "Network failure" error kind.
func NetworkFailure(component, url string, err error) {
	For(component).WithField("kind", "network-failure").WithField("url", url).Error(err)
}

// PermissionFailure logs spec.md §7's "Permission failure" error kind:
// the affected collector or source is not retried after this.
func PermissionFailure(component string) {
	For(component).WithField("kind", "permission-failure").Warn("initialise() reported false; disabling")
}

// CryptographicFailure logs spec.md §7's "Cryptographic failure" error
// kind immediately before the caller aborts the process, so the abort
// is visible in structured output.
func CryptographicFailure(component string, err error) {
	For(component).WithField("kind", "cryptographic-failure").Error(err)
}
