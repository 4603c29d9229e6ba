package sdapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"sdworker/pkg/types"
)

// Txt2Img posts a merged request to /txt2img and returns the response body
// unchanged. Any status is passed through as long as the body is JSON; the
// local API reports validation problems in a JSON body the caller should see.
func (c *Client) Txt2Img(ctx context.Context, req types.Txt2ImgRequest) (json.RawMessage, error) {
	body, err := req.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode txt2img request: %w", err)
	}
	ctx, cancel := withTimeout(ctx, c.inferTimeout)
	defer cancel()

	b, resp, err := c.postJSON(ctx, "/txt2img", body)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if !json.Valid(b) {
		return nil, fmt.Errorf("decode txt2img response (status %s): invalid JSON: %q", resp.Status, snippet(b))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("txt2img returned non-2xx status")
	}
	return json.RawMessage(b), nil
}
