package worker

import (
	"context"

	"github.com/rs/zerolog"

	"sdworker/pkg/types"
)

// OptionsSetter pushes a settings document to the local API.
type OptionsSetter interface {
	SetOptions(ctx context.Context, opts types.Options) error
}

// ApplyDefaultSettings pushes opts once. Failures are logged and dropped;
// startup continues either way.
func ApplyDefaultSettings(ctx context.Context, api OptionsSetter, opts types.Options, log zerolog.Logger) {
	if err := api.SetOptions(ctx, opts); err != nil {
		settingsPushTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("checkpoint", opts.SDModelCheckpoint).Msg("error setting defaults")
		return
	}
	settingsPushTotal.WithLabelValues("ok").Inc()
	log.Info().Str("checkpoint", opts.SDModelCheckpoint).Msg("default settings applied")
}
