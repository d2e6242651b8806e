package commands

import (
	"runtime"
	"runtime/debug"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/spf13/cobra"
)

// VersionInfo is the JSON shape of leaptrack version.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Commit    string `json:"commit,omitempty"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := VersionInfo{
				Version:   version,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if bi, ok := debug.ReadBuildInfo(); ok {
				for _, s := range bi.Settings {
					if s.Key == "vcs.revision" && len(s.Value) >= 12 {
						info.Commit = s.Value[:12]
					}
				}
			}

			r := NewCommandContextWithoutServices(cmd).Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Println("leaptrack v" + info.Version)
			r.Println(r.Muted(info.GoVersion + " " + info.Platform))
			if info.Commit != "" {
				r.Println(r.Muted("commit " + info.Commit))
			}
			return nil
		},
	}
}
