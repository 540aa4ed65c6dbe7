// SPDX-License-Identifier: MIT

package errs

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 application/problem+json body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	ErrorID  string `json:"error_id,omitempty"`
}

// Write renders err as an application/problem+json response. instance is
// typically the request path; errorID a correlation id for support
// tickets. The detail field respects the production disclosure policy via
// Disclose.
func Write(w http.ResponseWriter, err error, production bool, instance, errorID string) {
	kind := Classify(err)
	p := Problem{
		Type:     "https://streamvault.dev/errors/" + kind.String(),
		Title:    kind.String(),
		Status:   kind.HTTPStatus(),
		Detail:   Disclose(err, production),
		Instance: instance,
		ErrorID:  errorID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
