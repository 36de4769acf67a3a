package config

const (
	defaultEventsDir = "~/.local/share/blackbox/events"
	defaultLogDir    = "~/.local/share/blackbox/logs"
	defaultStateDir  = "~/.local/share/blackbox/state"

	defaultCameraWidth          = 640
	defaultCameraHeight         = 480
	defaultCameraFPS            = 30
	defaultCameraBackend        = "rpicam"
	defaultCameraBinary         = "rpicam-vid"
	defaultFFmpegBinary         = "ffmpeg"
	defaultCameraQuality        = 80
	defaultStartTimeoutSeconds  = 10
	defaultStopGraceSeconds     = 5
	defaultUnhealthyThreshold   = 30
	defaultInitSettleMillis     = 1000
	defaultRetryInitialSeconds  = 1
	defaultRetryMaxSeconds      = 30
	defaultMotionSensitivity    = "medium"
	defaultMotionCooldown       = 5
	defaultMotionSampleEvery    = 10
	defaultMotionAnalysisWidth  = 320
	defaultPreRollSeconds       = 90
	defaultPostRollSeconds      = 90
	defaultRecordingFPS         = 30
	defaultRecordingCodec       = "h264"
	defaultRecordingExtension   = ".mp4"
	defaultTimeoutSlackSeconds  = 10
	defaultSettleMillis         = 2000
	defaultResumeDelayMillis    = 0
	defaultStorageMaxGiB        = 25
	defaultRetentionDays        = 7
	defaultImportantRetention   = 30
	defaultEmergencyDivisor     = 3
	defaultFreeFloorMiB         = 1024
	defaultUsageRatio           = 0.8
	defaultAuditIntervalSeconds = 3600
	defaultErrorBackoffSeconds  = 60
	defaultLoopIntervalMillis   = 100
	defaultStatusInterval       = 30
	defaultShutdownGrace        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			EventsDir: defaultEventsDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Cameras: Cameras{
			IDs:                 []int{0, 1},
			Width:               defaultCameraWidth,
			Height:              defaultCameraHeight,
			FPS:                 defaultCameraFPS,
			Backend:             defaultCameraBackend,
			Binary:              defaultCameraBinary,
			FFmpegBinary:        defaultFFmpegBinary,
			Quality:             defaultCameraQuality,
			StartTimeoutSeconds: defaultStartTimeoutSeconds,
			StopGraceSeconds:    defaultStopGraceSeconds,
			UnhealthyThreshold:  defaultUnhealthyThreshold,
			InitSettleMillis:    defaultInitSettleMillis,
			RetryInitialSeconds: defaultRetryInitialSeconds,
			RetryMaxSeconds:     defaultRetryMaxSeconds,
		},
		Motion: Motion{
			Sensitivity:     defaultMotionSensitivity,
			CooldownSeconds: defaultMotionCooldown,
			SampleEvery:     defaultMotionSampleEvery,
			AnalysisWidth:   defaultMotionAnalysisWidth,
		},
		Recording: Recording{
			PreRollSeconds:      defaultPreRollSeconds,
			PostRollSeconds:     defaultPostRollSeconds,
			FPS:                 defaultRecordingFPS,
			Codec:               defaultRecordingCodec,
			Extension:           defaultRecordingExtension,
			Binary:              defaultCameraBinary,
			TimeoutSlackSeconds: defaultTimeoutSlackSeconds,
			SettleMillis:        defaultSettleMillis,
			ResumeDelayMillis:   defaultResumeDelayMillis,
			Thumbnails:          true,
		},
		Storage: Storage{
			MaxGiB:                 defaultStorageMaxGiB,
			RetentionDays:          defaultRetentionDays,
			ImportantRetentionDays: defaultImportantRetention,
			EmergencyDivisor:       defaultEmergencyDivisor,
			FreeFloorMiB:           defaultFreeFloorMiB,
			UsageRatio:             defaultUsageRatio,
			AuditIntervalSeconds:   defaultAuditIntervalSeconds,
			ErrorBackoffSeconds:    defaultErrorBackoffSeconds,
			Extensions:             []string{".mp4", ".h264"},
		},
		Workflow: Workflow{
			LoopIntervalMillis:    defaultLoopIntervalMillis,
			StatusIntervalSeconds: defaultStatusInterval,
			ShutdownGraceSeconds:  defaultShutdownGrace,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
