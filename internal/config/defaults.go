package config

const (
	defaultWorkDir            = "~/.local/share/storyreel/runs"
	defaultLogDir             = "~/.local/share/storyreel/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultLLMBaseURL         = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultLLMModel           = "qwen-plus"
	defaultLLMTimeoutSeconds  = 60
	defaultTTSBaseURL         = "https://dashscope.aliyuncs.com/api/v1/services/aigc/tts"
	defaultTTSModel           = "cosyvoice-v2"
	defaultTTSVoice           = "longhua_v2"
	defaultTTSTimeoutSeconds  = 60
	defaultVideoBaseURL       = "https://dashscope.aliyuncs.com/api/v1/services/aigc/video-generation"
	defaultT2VModel           = "wan2.2-t2v-plus"
	defaultI2VModel           = "wan2.2-i2v-flash"
	defaultImageEditModel     = "qwen-image-edit"
	defaultVideoSize          = "832*480"
	defaultVideoResolution    = "480P"
	defaultVideoPollSeconds   = 5
	defaultVideoTimeout       = 600
	defaultQualityModel       = "qwen-vl-max-latest"
	defaultQualityVideoFPS    = 2
	defaultQualityTimeout     = 180
	defaultOSSEndpoint        = "oss-cn-beijing.aliyuncs.com"
	defaultOSSTimeoutSeconds  = 300
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultAudioBitrate       = "128k"
	defaultCallsPerSecond     = 2
	defaultCallsPerMinute     = 20
	defaultMinIntervalMillis  = 500
	defaultAcquireTimeoutSecs = 30
	defaultRetryMaxAttempts   = 5
	defaultRetryBaseDelay     = 1.0
	defaultRetryMaxDelay      = 60.0
	defaultRetryBackoffFactor = 2.0
	defaultMaxScenes          = 10
	defaultDialogueMaxRunes   = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			Model:          defaultTTSModel,
			DefaultVoice:   defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		VideoGen: VideoGen{
			BaseURL:             defaultVideoBaseURL,
			TextToVideoModel:    defaultT2VModel,
			ImageToVideoModel:   defaultI2VModel,
			ImageEditModel:      defaultImageEditModel,
			Size:                defaultVideoSize,
			Resolution:          defaultVideoResolution,
			PollIntervalSeconds: defaultVideoPollSeconds,
			TimeoutSeconds:      defaultVideoTimeout,
		},
		Quality: Quality{
			Enabled:        true,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultQualityModel,
			VideoFPS:       defaultQualityVideoFPS,
			TimeoutSeconds: defaultQualityTimeout,
		},
		OSS: OSS{
			Endpoint:       defaultOSSEndpoint,
			TimeoutSeconds: defaultOSSTimeoutSeconds,
		},
		Media: Media{
			FFmpeg:       defaultFFmpegBinary,
			FFprobe:      defaultFFprobeBinary,
			AudioBitrate: defaultAudioBitrate,
		},
		RateLimit: RateLimit{
			CallsPerSecond:        defaultCallsPerSecond,
			CallsPerMinute:        defaultCallsPerMinute,
			MinIntervalMillis:     defaultMinIntervalMillis,
			AcquireTimeoutSeconds: defaultAcquireTimeoutSecs,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryMaxAttempts,
			BaseDelaySeconds: defaultRetryBaseDelay,
			MaxDelaySeconds:  defaultRetryMaxDelay,
			BackoffFactor:    defaultRetryBackoffFactor,
		},
		Pipeline: Pipeline{
			MaxScenes:        defaultMaxScenes,
			DialogueMaxRunes: defaultDialogueMaxRunes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
