// Package build holds version information stamped at link time.
package build

// Version is overridden by -ldflags at release build time
var Version = "dev"
