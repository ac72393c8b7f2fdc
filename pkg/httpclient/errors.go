package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

const maxBodyBytes = 1 << 20

// downstreamError covers the two error body shapes seen from collaborators:
// the platform envelope {"error":{"code","message"}} and the flat
// {"status":false,"message":"..."} used by payment gateways.
type downstreamError struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns an ExternalService AppError carrying the downstream message verbatim.
func ParseResponseError(resp *http.Response, serviceName string) *apperrors.AppError {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.ExternalService(serviceName,
			fmt.Sprintf("status %d (failed to read body: %v)", resp.StatusCode, err))
	}

	return apperrors.ExternalService(serviceName, downstreamMessage(resp.StatusCode, body))
}

func downstreamMessage(status int, body []byte) string {
	var de downstreamError
	if json.Unmarshal(body, &de) == nil {
		if de.Error != nil && de.Error.Message != "" {
			return de.Error.Message
		}
		if de.Message != "" {
			return de.Message
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("status %d %s", status, http.StatusText(status))
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
