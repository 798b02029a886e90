package version

import "fmt"

// Set at build time with -ldflags "-X .../pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func GetVersion() VersionInfo {
	return VersionInfo{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("testnet-faucet-automation %s (commit %s, built %s)", v.Version, v.Commit, v.Date)
}
