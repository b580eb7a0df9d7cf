package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

// HTTPReplayer — операции типа "update": POST JSON data на url из payload.
func HTTPReplayer(client *http.Client) Replayer {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, op domain.PendingOperation) error {
		var url string
		if err := op.Field(domain.FieldURL, &url); err != nil || url == "" {
			return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "operation %s: url is required", op.ID)
		}
		body := op.Payload[domain.FieldData]
		if len(body) == 0 {
			body = json.RawMessage("null")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInvalidArgument, "operation %s: build request", op.ID)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeNetwork, "operation %s: post %s", op.ID, url)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		return classifyStatus(resp.StatusCode, fmt.Sprintf("operation %s: post %s", op.ID, url))
	}
}

// classifyStatus — 2xx ок; 401/403 и 400/422 permanent; прочее временно.
func classifyStatus(code int, what string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperr.Wrap(apperr.ErrPermissionDenied, apperr.CodePermissionDenied, "%s: status %d", what, code)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "%s: status %d", what, code)
	default:
		return apperr.Wrap(apperr.ErrUnavailable, apperr.CodeUnavailable, "%s: status %d", what, code)
	}
}
