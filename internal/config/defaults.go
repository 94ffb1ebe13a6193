package config

const (
	defaultDataDir = "~/.local/share/biru"
	defaultLogDir  = "~/.local/share/biru/logs"

	defaultMinClips              = 15
	defaultMaxClips              = 25
	defaultMinGapSeconds         = 10.0
	defaultScoreRelaxationFactor = 0.75
	defaultMinSegmentSeconds     = 5.0
	defaultScoreThreshold        = 0.3

	defaultHookWeight   = 0.6
	defaultEnergyWeight = 0.4

	defaultSmoothingAlpha = 0.2

	defaultHorizonDays = 14

	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 15
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultSchedulePassInterval   = 60
	defaultDispatchTimeoutSeconds = 300
	defaultDispatchMaxAttempts    = 3

	defaultNtfyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Selection: Selection{
			MinClips:              defaultMinClips,
			MaxClips:              defaultMaxClips,
			MinGapSeconds:         defaultMinGapSeconds,
			ScoreRelaxationFactor: defaultScoreRelaxationFactor,
			MinSegmentSeconds:     defaultMinSegmentSeconds,
			ScoreThreshold:        defaultScoreThreshold,
		},
		Scoring: Scoring{
			HookWeight:   defaultHookWeight,
			EnergyWeight: defaultEnergyWeight,
		},
		Memory: Memory{
			SmoothingAlpha:  defaultSmoothingAlpha,
			DurationBuckets: []int{15, 30, 60},
		},
		Schedule: Schedule{
			HorizonDays: defaultHorizonDays,
			Platforms:   []string{"YOUTUBE", "INSTAGRAM"},
			SlotHours:   []int{9, 14, 19},
		},
		Workflow: Workflow{
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			HeartbeatInterval:      defaultHeartbeatInterval,
			HeartbeatTimeout:       defaultHeartbeatTimeout,
			SchedulePassInterval:   defaultSchedulePassInterval,
			DispatchTimeoutSeconds: defaultDispatchTimeoutSeconds,
			DispatchMaxAttempts:    defaultDispatchMaxAttempts,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Ingest:         true,
			Selection:      true,
			Schedule:       true,
			Posting:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
