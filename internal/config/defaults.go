package config

const (
	defaultDataDir               = "~/archive"
	defaultStateDir              = "~/.local/share/archivist"
	defaultLogDir                = "~/.local/share/archivist/logs"
	defaultAPIBind               = "127.0.0.1:7823"
	defaultSearchURL             = "https://archive.org/advancedsearch.php"
	defaultMetadataURL           = "https://archive.org/metadata"
	defaultDownloadURL           = "https://archive.org/download"
	defaultRemoteRequestTimeout  = 30
	defaultTransferRetries       = 5
	defaultAdmissionPollMS       = 500
	defaultSupervisionPollMS     = 500
	defaultProgressIntervalMS    = 1000
	defaultTerminateGraceSeconds = 2
	defaultStaleStagingHours     = 24
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Remote: Remote{
			SearchURL:      defaultSearchURL,
			MetadataURL:    defaultMetadataURL,
			DownloadURL:    defaultDownloadURL,
			RequestTimeout: defaultRemoteRequestTimeout,
		},
		Transfers: Transfers{
			SkipExisting:       true,
			VerifyChecksum:     false,
			Retries:            defaultTransferRetries,
			TimeoutSeconds:     0,
			Flatten:            true,
			PreserveTimestamps: true,
			IncludeDerivatives: false,
		},
		Workflow: Workflow{
			AdmissionPollMS:       defaultAdmissionPollMS,
			SupervisionPollMS:     defaultSupervisionPollMS,
			ProgressIntervalMS:    defaultProgressIntervalMS,
			TerminateGraceSeconds: defaultTerminateGraceSeconds,
			StaleStagingHours:     defaultStaleStagingHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
