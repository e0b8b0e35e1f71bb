package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"memographic/ai"
	"memographic/config"
	"memographic/gemini"
	"memographic/keygate"
	"memographic/recorder"
	"memographic/scribe"
	"memographic/session"
)

// newMachine assembles a session from the loaded configuration. host may
// be nil to run without the key gate.
func (a *app) newMachine(host keygate.Host) (*session.Machine, error) {
	device, err := recorder.NewFFmpegDevice(recorder.DeviceConfig{
		Command: a.cfg.Recorder.Command,
		Device:  a.cfg.Recorder.Device,
	}, a.logger.Named("capture"))
	if err != nil {
		return nil, fmt.Errorf("failed to configure capture: %w", err)
	}
	rec := recorder.New(device,
		recorder.WithFormat(recorder.Format{
			SampleRate: a.cfg.Recorder.SampleRate,
			Channels:   a.cfg.Recorder.Channels,
		}),
		recorder.WithLogger(a.logger.Named("recorder")),
	)

	transcriber, err := ai.NewTranscriber(a.cfg, ai.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	generator, err := ai.NewImageGenerator(a.cfg, ai.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithRecorder(rec),
		session.WithTranscriber(transcriber),
		session.WithImageGenerator(generator),
		session.WithLogger(a.logger.Named("session")),
		session.WithTimeout(a.cfg.RequestTimeout),
	}
	if host != nil {
		opts = append(opts, session.WithKeyHost(host))
	}
	return session.New(opts...), nil
}

// keyHost returns the gate host for the image provider, or nil when the
// gate is off or the provider authenticates without an API key. A nil
// prompt makes the gate refuse when no key is set.
func keyHost(cfg config.Config, prompt keygate.Prompter, logger *zap.Logger) keygate.Host {
	if cfg.KeyGate.Mode == config.KeyGateOff {
		return nil
	}
	vars := ai.KeyEnvVars(cfg)
	if len(vars) == 0 {
		return nil
	}
	return keygate.NewEnvHost(prompt,
		keygate.WithEnvVars(vars...),
		keygate.WithPersistFile(cfg.KeyGate.PersistFile),
		keygate.WithLogger(logger.Named("keygate")),
	)
}

// keyHelp returns setup instructions when the transcription provider has
// no key yet
func keyHelp(cfg config.Config) string {
	switch cfg.Transcription.Provider {
	case config.ProviderGemini:
		if gemini.CheckConfig() != nil {
			return gemini.GetAPIKeyHelp()
		}
	case config.ProviderElevenLabs, config.ProviderElevenLabsRealtime:
		if strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")) == "" {
			return scribe.GetAPIKeyHelp()
		}
	}
	return ""
}
