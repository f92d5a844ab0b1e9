package main

import (
	"context"

	"typofix/src/clipboard"
	"typofix/src/config"
	"typofix/src/fixer"
	"typofix/src/input"
	"typofix/src/llm"
	"typofix/src/notification"
	"typofix/src/overlay"
	"typofix/src/runtimeinit"
)

// newPipeline wires the fix pipeline to the real clipboard, keyboard, toast and
// duck overlay. releaseKeys are the hotkey modifiers held when a run starts.
func newPipeline(rt *runtimeinit.Runtime, releaseKeys []string) (*fixer.Pipeline, error) {
	cfg := rt.Config
	return fixer.New(fixer.Options{
		Settings:    rt.Settings,
		Clipboard:   clipboard.System{},
		Keyboard:    input.New(),
		Notifier:    notification.Toast{},
		Overlay:     overlay.NewDuck(),
		ReleaseKeys: releaseKeys,
		NewCorrector: func(st config.Settings) fixer.Corrector {
			return newClient(cfg, st.APIKey, st.Model)
		},
		Logger: rt.Logger,
	})
}

func newClient(cfg *config.Config, apiKey, model string) *llm.Client {
	return llm.New(llm.Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.RequestTimeout(),
	})
}

// modelLister lists Gemini models for the settings UI.
func modelLister(cfg *config.Config) func(ctx context.Context, apiKey string) ([]string, error) {
	return func(ctx context.Context, apiKey string) ([]string, error) {
		return newClient(cfg, apiKey, "").ListModels(ctx)
	}
}
