package serverless

import (
	"bytes"
	"encoding/json"

	"sdworker/pkg/types"
)

// toJobResult splits an "error" string out of a handler output object so the
// platform reports the job as failed.
func toJobResult(out json.RawMessage) types.JobResult {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return types.JobResult{Output: out}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return types.JobResult{Output: out}
	}
	raw, ok := fields["error"]
	if !ok {
		return types.JobResult{Output: out}
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil || msg == "" {
		return types.JobResult{Output: out}
	}
	delete(fields, "error")
	res := types.JobResult{Error: msg}
	if len(fields) > 0 {
		res.Output, _ = json.Marshal(fields)
	}
	return res
}
