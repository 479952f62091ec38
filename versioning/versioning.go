package versioning

var (
	// Version is the router-mesh release, following SemVer
	// (https://semver.org/). Branch, Commit and BuildTime identify
	// the exact build. All four are embedded with --ldflags at
	// build time and stay empty in development builds.
	Version   string
	Branch    string
	Commit    string
	BuildTime string
)
