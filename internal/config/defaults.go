package config

const (
	defaultLocalDir           = "~/.local/share/scout"
	defaultLogDir             = "~/.local/share/scout/logs"
	defaultMasterURL          = "https://master.iw4.zip"
	defaultGameID             = "H2M"
	defaultLocationURL        = "https://api.findip.net"
	defaultFavoritesLimit     = 100
	defaultConsoleBinary      = "h2m-mod"
	defaultReleaseManifestURL = "https://gist.githubusercontent.com/WardLordRuby/324d7c1fb454aed5f5155a790bd028f0/raw/"
	defaultReleaseTimeout     = 6
	defaultCacheFlushInterval = 240
	defaultRequestTimeout     = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LocalDir: defaultLocalDir,
			LogDir:   defaultLogDir,
		},
		Master: Master{
			URL:    defaultMasterURL,
			GameID: defaultGameID,
		},
		Location: Location{
			URL: defaultLocationURL,
		},
		Favorites: Favorites{
			Limit: defaultFavoritesLimit,
		},
		Console: Console{
			Binary: defaultConsoleBinary,
		},
		Release: Release{
			ManifestURL:    defaultReleaseManifestURL,
			TimeoutSeconds: defaultReleaseTimeout,
		},
		Workflow: Workflow{
			CacheFlushInterval: defaultCacheFlushInterval,
			RequestTimeout:     defaultRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
