package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avashx/itark/assistant"
	"github.com/avashx/itark/audio"
	"github.com/avashx/itark/camera"
	"github.com/avashx/itark/config"
	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/media"
	"github.com/avashx/itark/metrics"
	"github.com/avashx/itark/speech"
	"github.com/avashx/itark/stt"
	"github.com/avashx/itark/telemetry"
	"github.com/avashx/itark/tts"
	"github.com/avashx/itark/ui"
	"github.com/avashx/itark/version"
	"github.com/avashx/itark/vision"
	"github.com/avashx/itark/voice"
)

const shutdownTimeout = 5 * time.Second

// app holds the wired components of one process.
type app struct {
	orch    *assistant.Orchestrator
	speech  *speech.Output
	audio   *audio.System
	closers []func(context.Context) error
}

func run(ctx context.Context, flags *rootFlags) error {
	var opts []config.Option
	if flags.configFile != "" {
		opts = append(opts, config.WithConfigFile(flags.configFile))
	}
	if flags.envFile != "" {
		opts = append(opts, config.WithEnvFile(flags.envFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logFile, err := logger.OpenLogFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	level := cfg.LogLevel
	if flags.verbose {
		level = "debug"
	}
	if err := logger.Configure(&logger.LoggingConfigSpec{
		Level:        level,
		Format:       cfg.LogFormat,
		CommonFields: map[string]string{"service": "itark"},
		Output:       logFile,
	}); err != nil {
		return err
	}
	version.LogStartup()

	a, err := build(ctx, cfg, flags.noVoice)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.orch.Start(ctx); err != nil {
		return fmt.Errorf("start assistant: %s: %w", assistant.StatusMessage(err), err)
	}

	uiErr := ui.RunUI(a.orch)
	a.orch.Stop()
	if uiErr != nil {
		return fmt.Errorf("terminal ui: %w", uiErr)
	}
	return nil
}

// build wires every component from cfg. Audio and cloud speech are optional:
// without them the assistant runs with typed questions and local speech.
func build(ctx context.Context, cfg *config.Config, noVoice bool) (*app, error) {
	a := &app{}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "itark")
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter(cfg.MetricsAddr)
		if err := exporter.Start(); err != nil {
			logger.Warn("Metrics exporter disabled", "addr", cfg.MetricsAddr, "error", err)
		} else {
			a.closers = append(a.closers, exporter.Shutdown)
		}
	}

	prompts, err := vision.LoadPrompts(cfg.Language)
	if err != nil {
		a.close()
		return nil, err
	}

	device := camera.NewFFmpegDevice(camera.FFmpegConfig{
		Index:  cfg.CameraIndex,
		Device: cfg.CameraDevice,
		Width:  cfg.CameraWidth,
		Height: cfg.CameraHeight,
		FPS:    cfg.CameraFPS,
	})
	describer := vision.NewGeminiClient(cfg.APIKey,
		vision.WithModel(cfg.Model),
		vision.WithHourlyBudget(cfg.MaxCallsPerHour),
	)

	var speaker audio.Speaker
	var mic audio.Microphone
	if !noVoice {
		sys, err := audio.OpenSystem()
		switch {
		case errors.Is(err, audio.ErrNoAudioBackend):
			logger.Info("Audio backend not built in, running text-only")
		case err != nil:
			logger.Warn("Audio unavailable, running text-only", "error", err)
		default:
			a.audio = sys
			speaker, mic = sys.Speaker(), sys.Microphone()
		}
	}

	// The orchestrator is created after the components that report to it.
	var orch *assistant.Orchestrator
	setStatus := func(msg string) {
		if orch != nil {
			orch.SetStatus(msg)
		}
	}

	chain := buildTTS(cfg, speaker)
	a.speech = speech.NewOutput(chain, speech.WithStatusFunc(setStatus))

	orchOpts := []assistant.Option{
		assistant.WithSpeaker(a.speech),
		assistant.WithVoiceSettings(chain),
		assistant.WithPromptLoader(func(lang string) (assistant.Prompts, error) {
			p, err := vision.LoadPrompts(lang)
			if err != nil {
				return nil, err
			}
			return p, nil
		}),
		assistant.WithPreparer(media.NewPreprocessor(cfg.ImageMaxWidth, cfg.JPEGQuality)),
		assistant.WithInterval(cfg.DescriptionInterval),
		assistant.WithAutoDescribe(cfg.AutoDescribe),
	}
	if mic != nil && cfg.OpenAIAPIKey != "" {
		listener := voice.NewListener(mic, stt.NewOpenAI(cfg.OpenAIAPIKey),
			voice.WithConfig(voice.Config{
				WaitTimeout:     cfg.VoiceTimeout,
				PhraseTimeLimit: cfg.PhraseTimeLimit,
				Language:        cfg.Language,
			}),
			voice.WithObserver(func(from, to voice.State) {
				if orch != nil {
					orch.ObserveVoice(from, to)
				}
			}),
		)
		orchOpts = append(orchOpts, assistant.WithListener(listener))
	} else if mic != nil {
		logger.Info("OPENAI_API_KEY not set, voice questions disabled")
	}

	orch = assistant.New(device, describer, prompts, orchOpts...)
	a.orch = orch
	return a, nil
}

// buildTTS orders the engines: Google and OpenAI when keyed and a speaker is
// present, then the local synthesizer. tts_rate sets the initial speaking
// speed of all of them.
func buildTTS(cfg *config.Config, speaker audio.Speaker) *tts.Chain {
	var engines []tts.Engine
	synth := tts.DefaultSynthesisConfig()

	if speaker != nil {
		if cfg.GoogleTTSAPIKey != "" {
			engines = append(engines, tts.NewCloudEngine(tts.NewGoogle(cfg.GoogleTTSAPIKey), speaker, synth))
		}
		if cfg.OpenAIAPIKey != "" {
			engines = append(engines, tts.NewCloudEngine(tts.NewOpenAI(cfg.OpenAIAPIKey), speaker, synth))
		}
	}

	local, err := tts.NewLocalEngine(tts.DefaultWordsPerMinute)
	if err != nil {
		logger.Warn("Local speech synthesizer unavailable", "error", err)
	} else {
		engines = append(engines, local)
	}

	if len(engines) == 0 {
		logger.Warn("No speech engine available, descriptions will only be shown")
	}
	accent, err := tts.ParseAccent(cfg.VoiceAccent)
	if err != nil {
		accent = tts.AccentUS
	}
	return tts.NewChain(engines, tts.WithSettings(tts.Settings{
		Language: cfg.Language,
		Accent:   accent,
		Speed:    cfg.SpeechRate(),
		HD:       cfg.HDVoice,
	}))
}

func (a *app) close() {
	if a.speech != nil {
		a.speech.Close()
	}
	if a.audio != nil {
		if err := a.audio.Close(); err != nil {
			logger.Warn("Closing audio failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("Shutdown failed", "error", err)
		}
	}
}
