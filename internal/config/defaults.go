package config

const (
	defaultDataDir              = "~/.local/share/notely"
	defaultLogDir               = "~/.local/share/notely/logs"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultConcurrency          = 2
	defaultMaxAttempts          = 5
	defaultBackoffBaseSeconds   = 1
	defaultBackoffMaxSeconds    = 30
	defaultPendingLimit         = 1000
	defaultNotifyETASeconds     = 10
	defaultEstimatorAlpha       = 0.2
	defaultEstimatorNoiseFloor  = 50
	defaultEstimatorHistorySize = 90
	defaultStorageRegion        = "auto"
	defaultBroadcastChannel     = "notely-file-queue"
	defaultProbeIntervalSeconds = 15
	defaultProbeTimeoutSeconds  = 5
	defaultNotifyRequestTimeout = 10
	defaultImageMaxDimension    = 1920
	defaultImageQuality         = 0.8
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			Concurrency:        defaultConcurrency,
			MaxAttempts:        defaultMaxAttempts,
			BackoffBaseSeconds: defaultBackoffBaseSeconds,
			BackoffMaxSeconds:  defaultBackoffMaxSeconds,
			PendingLimit:       defaultPendingLimit,
			NotifyETASeconds:   defaultNotifyETASeconds,
		},
		Estimator: Estimator{
			Alpha:       defaultEstimatorAlpha,
			NoiseFloor:  defaultEstimatorNoiseFloor,
			HistorySize: defaultEstimatorHistorySize,
		},
		Storage: Storage{
			Region:       defaultStorageRegion,
			UsePathStyle: true,
		},
		Broadcast: Broadcast{
			Channel: defaultBroadcastChannel,
		},
		Connectivity: Connectivity{
			ProbeIntervalSeconds: defaultProbeIntervalSeconds,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			Netlink:              true,
		},
		Notifications: Notifications{
			Enabled:        true,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Images: Images{
			Compress:  true,
			MaxWidth:  defaultImageMaxDimension,
			MaxHeight: defaultImageMaxDimension,
			Quality:   defaultImageQuality,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
