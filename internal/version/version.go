// internal/version/version.go
package version

// Version is the current biclust release version.
const Version = "0.3.0"
