package sdapi

import (
	"context"
	"encoding/json"
	"fmt"

	"sdworker/pkg/types"
)

// SetOptions posts the settings document to /options.
func (c *Client) SetOptions(ctx context.Context, opts types.Options) error {
	body, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	ctx, cancel := withTimeout(ctx, c.optionsTimeout)
	defer cancel()

	b, resp, err := c.postJSON(ctx, "/options", body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{Op: "set options", StatusCode: resp.StatusCode, Status: resp.Status, Body: snippet(b)}
	}
	return nil
}
