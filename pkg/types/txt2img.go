package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
)

// Defaults applied to a txt2img request when the caller leaves a field unset.
const (
	DefaultPrompt            = ""
	DefaultNegativePrompt    = "low quality, bad anatomy, worst quality, low resolution, blurry, ugly, bad proportions, bad composition"
	DefaultSteps             = 30
	DefaultCFGScale          = 7.0
	DefaultWidth             = 512
	DefaultHeight            = 768
	DefaultSamplerName       = "DPM++ 2M Karras"
	DefaultEnableHR          = false
	DefaultDenoisingStrength = 0.7
	DefaultBatchSize         = 1
)

// ErrInputNotObject is returned when a job input is not a JSON object.
var ErrInputNotObject = errors.New("job input must be a JSON object")

// Txt2ImgRequest is the body sent to POST /txt2img.
//
// Recognized keys are typed; a nil field means the caller did not set it.
// Every other key, and any recognized key whose value does not fit the typed
// field, is kept verbatim in Extra and forwarded as is.
type Txt2ImgRequest struct {
	// Text prompt.
	// example: a cat sitting on a windowsill
	Prompt *string `json:"prompt,omitempty" example:"a cat sitting on a windowsill"`
	// Negative prompt.
	NegativePrompt *string `json:"negative_prompt,omitempty"`
	// Number of sampling steps.
	// example: 30
	Steps *int `json:"steps,omitempty" example:"30"`
	// Classifier-free guidance scale.
	// example: 7
	CFGScale *float64 `json:"cfg_scale,omitempty" example:"7"`
	// Image width in pixels.
	// example: 512
	Width *int `json:"width,omitempty" example:"512"`
	// Image height in pixels.
	// example: 768
	Height *int `json:"height,omitempty" example:"768"`
	// Sampler name as known to the local API.
	// example: DPM++ 2M Karras
	SamplerName *string `json:"sampler_name,omitempty" example:"DPM++ 2M Karras"`
	// Enable the high-resolution fix pass.
	EnableHR *bool `json:"enable_hr,omitempty"`
	// Denoising strength used by the hires pass.
	// example: 0.7
	DenoisingStrength *float64 `json:"denoising_strength,omitempty" example:"0.7"`
	// Images per batch.
	// example: 1
	BatchSize *int `json:"batch_size,omitempty" example:"1"`

	Extra map[string]json.RawMessage `json:"-" swaggerignore:"true"`
}

// ParseTxt2ImgRequest decodes a job input. Empty input and JSON null decode to
// an empty request.
func ParseTxt2ImgRequest(raw json.RawMessage) (Txt2ImgRequest, error) {
	var req Txt2ImgRequest
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return req, nil
	}
	if raw[0] != '{' {
		return req, ErrInputNotObject
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	return req, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Txt2ImgRequest) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Txt2ImgRequest{}
	for k, v := range raw {
		if r.setKnown(k, v) {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return nil
}

func (r *Txt2ImgRequest) setKnown(key string, v json.RawMessage) bool {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return false
	}
	switch key {
	case "prompt":
		return decodeField(v, &r.Prompt)
	case "negative_prompt":
		return decodeField(v, &r.NegativePrompt)
	case "steps":
		return decodeField(v, &r.Steps)
	case "cfg_scale":
		return decodeField(v, &r.CFGScale)
	case "width":
		return decodeField(v, &r.Width)
	case "height":
		return decodeField(v, &r.Height)
	case "sampler_name":
		return decodeField(v, &r.SamplerName)
	case "enable_hr":
		return decodeField(v, &r.EnableHR)
	case "denoising_strength":
		return decodeField(v, &r.DenoisingStrength)
	case "batch_size":
		return decodeField(v, &r.BatchSize)
	}
	return false
}

// decodeField fills dst only when re-encoding the decoded value gives back
// the caller's bytes. Anything else stays in Extra and is sent untouched.
func decodeField[T any](v json.RawMessage, dst **T) bool {
	var x T
	if err := json.Unmarshal(v, &x); err != nil {
		return false
	}
	var want bytes.Buffer
	if err := json.Compact(&want, v); err != nil {
		return false
	}
	var got bytes.Buffer
	enc := json.NewEncoder(&got)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(x); err != nil {
		return false
	}
	if !bytes.Equal(bytes.TrimSpace(got.Bytes()), want.Bytes()) {
		return false
	}
	*dst = &x
	return true
}

// MarshalJSON emits the set fields followed by the passthrough keys.
func (r Txt2ImgRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 10+len(r.Extra))
	if r.Prompt != nil {
		out["prompt"] = *r.Prompt
	}
	if r.NegativePrompt != nil {
		out["negative_prompt"] = *r.NegativePrompt
	}
	if r.Steps != nil {
		out["steps"] = *r.Steps
	}
	if r.CFGScale != nil {
		out["cfg_scale"] = *r.CFGScale
	}
	if r.Width != nil {
		out["width"] = *r.Width
	}
	if r.Height != nil {
		out["height"] = *r.Height
	}
	if r.SamplerName != nil {
		out["sampler_name"] = *r.SamplerName
	}
	if r.EnableHR != nil {
		out["enable_hr"] = *r.EnableHR
	}
	if r.DenoisingStrength != nil {
		out["denoising_strength"] = *r.DenoisingStrength
	}
	if r.BatchSize != nil {
		out["batch_size"] = *r.BatchSize
	}
	for k, v := range r.Extra {
		out[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WithDefaults returns a copy of r where every field the caller did not set
// holds its default. Caller values, including untyped passthrough values for
// recognized keys, are never replaced.
func (r Txt2ImgRequest) WithDefaults() Txt2ImgRequest {
	out := r
	out.Extra = maps.Clone(r.Extra)
	unset := func(key string) bool {
		_, ok := r.Extra[key]
		return !ok
	}
	if out.Prompt == nil && unset("prompt") {
		out.Prompt = ptr(DefaultPrompt)
	}
	if out.NegativePrompt == nil && unset("negative_prompt") {
		out.NegativePrompt = ptr(DefaultNegativePrompt)
	}
	if out.Steps == nil && unset("steps") {
		out.Steps = ptr(DefaultSteps)
	}
	if out.CFGScale == nil && unset("cfg_scale") {
		out.CFGScale = ptr(DefaultCFGScale)
	}
	if out.Width == nil && unset("width") {
		out.Width = ptr(DefaultWidth)
	}
	if out.Height == nil && unset("height") {
		out.Height = ptr(DefaultHeight)
	}
	if out.SamplerName == nil && unset("sampler_name") {
		out.SamplerName = ptr(DefaultSamplerName)
	}
	if out.EnableHR == nil && unset("enable_hr") {
		out.EnableHR = ptr(DefaultEnableHR)
	}
	if out.DenoisingStrength == nil && unset("denoising_strength") {
		out.DenoisingStrength = ptr(DefaultDenoisingStrength)
	}
	if out.BatchSize == nil && unset("batch_size") {
		out.BatchSize = ptr(DefaultBatchSize)
	}
	return out
}

// DefaultTxt2ImgRequest returns the request sent for an empty job input.
func DefaultTxt2ImgRequest() Txt2ImgRequest {
	return Txt2ImgRequest{}.WithDefaults()
}

func ptr[T any](v T) *T { return &v }
