package version

var (
	Version = "0.1.0"

	// git hash should be filled by:
	// 	go build -ldflags="-X github.com/cayleygraph/plaza/version.GitHash=xxxx"

	GitHash   = "dev snapshot"
	BuildDate string
)

// String formats the version for display.
func String() string {
	s := "plaza " + Version + " (" + GitHash + ")"
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
