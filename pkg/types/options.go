package types

// DefaultCheckpoint is the model file the worker image ships with.
const DefaultCheckpoint = "wai-nsfw-illustrious-sdxl.safetensors"

// Options is the settings document sent to POST /options at startup.
type Options struct {
	// Checkpoint file name as listed by the local API.
	// example: wai-nsfw-illustrious-sdxl.safetensors
	SDModelCheckpoint string `json:"sd_model_checkpoint" yaml:"sd_model_checkpoint" toml:"sd_model_checkpoint" example:"wai-nsfw-illustrious-sdxl.safetensors"`
	// CLIP skip.
	// example: 2
	CLIPStopAtLastLayers int `json:"CLIP_stop_at_last_layers" yaml:"clip_stop_at_last_layers" toml:"clip_stop_at_last_layers" example:"2"`
	// VAE name; "None" uses the VAE baked into the checkpoint.
	// example: None
	SDVAE          string `json:"sd_vae" yaml:"sd_vae" toml:"sd_vae" example:"None"`
	SamplingMethod string `json:"sampling_method" yaml:"sampling_method" toml:"sampling_method"`
	SamplingSteps  int    `json:"sampling_steps" yaml:"sampling_steps" toml:"sampling_steps"`
	BatchSize      int    `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
}

// DefaultOptions returns the settings document pushed once at startup.
func DefaultOptions() Options {
	return Options{
		SDModelCheckpoint:    DefaultCheckpoint,
		CLIPStopAtLastLayers: 2,
		SDVAE:                "None",
		SamplingMethod:       DefaultSamplerName,
		SamplingSteps:        DefaultSteps,
		BatchSize:            DefaultBatchSize,
	}
}
