package esedb

// version is the library version reported by Version.
const version = "0.4.0"

// Version returns the library version.
func Version() string {
	return version
}
