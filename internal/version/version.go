// Package version reports the VCS revision the binary was built from.
package version

import (
	"encoding/json"
	"runtime/debug"
)

// Info is the build information embedded by the Go toolchain.
type Info struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Time     string `json:"time"`
	Modified bool   `json:"modified"`
}

// Read returns the build information of the running binary.
func Read() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{}
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	v := Info{Version: info.Main.Version}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.Commit = setting.Value
		case "vcs.time":
			v.Time = setting.Value
		case "vcs.modified":
			v.Modified = setting.Value == "true"
		}
	}
	return v
}

// String returns the build information as JSON.
func (i Info) String() string {
	b, _ := json.Marshal(i)
	return string(b)
}
