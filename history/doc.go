// Package history houses concrete implementations of core.HistoryStore. The
// interface itself lives in the core package to centralize domain contracts;
// keeping only implementations here prevents higher level packages from
// depending on concrete storage.
//
// Add additional backends (Redis, Postgres, etc.) in sub-packages without
// changing any calling code - only the wiring layer needs to decide which
// implementation to instantiate. A durable gorm-backed store ships in the
// gormstore sub-package.
package history
