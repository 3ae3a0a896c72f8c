// Package version reports the build version of the recpipe binary, from
// -ldflags values when set and from the Go toolchain's VCS stamps otherwise.
package version
