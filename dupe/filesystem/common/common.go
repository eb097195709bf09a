package common

// This package contains shared utilities and types used across filesystem packages.
// It provides the Logger abstraction, sentinel errors and validation, path helpers,
// and the atomic counters the scanner and hashers report.

// Note: Utility types are defined in their respective files.
// Use constructors like common.NewPathUtils() to create instances.
