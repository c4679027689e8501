package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/host"
)

// JSONEnvelope wraps --json output in a consistent structure.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError is the machine-readable form of a failure.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeHostNotFound      = "HOST_NOT_FOUND"
	ErrCodeKeyUnusable       = "KEY_UNUSABLE"
	ErrCodeSSHTimeout        = "SSH_TIMEOUT"
	ErrCodeSSHAuthFailed     = "SSH_AUTH_FAILED"
	ErrCodeSSHHostKey        = "SSH_HOST_KEY"
	ErrCodeSSHConnectionFail = "SSH_CONNECTION_FAILED"
	ErrCodeCommandFailed     = "COMMAND_FAILED"
	ErrCodeStepFailed        = "STEP_FAILED"
	ErrCodeUnknown           = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONFromError converts err to a failed response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: ErrorToJSON(err)})
}

func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON maps err to a JSONError. Probe errors keep their reason.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var probeErr *host.ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErrorToJSON(probeErr)
	}

	var vErr *errors.Error
	if stderrors.As(err, &vErr) {
		return &JSONError{
			Code:       mapErrorCode(vErr.Code),
			Message:    vErr.Message,
			Suggestion: vErr.Suggestion,
		}
	}

	return &JSONError{Code: ErrCodeUnknown, Message: err.Error()}
}

func mapErrorCode(internalCode string) string {
	switch internalCode {
	case errors.ErrConfig:
		return ErrCodeConfigInvalid
	case errors.ErrInput:
		return ErrCodeInvalidInput
	case errors.ErrKey:
		return ErrCodeKeyUnusable
	case errors.ErrSSH:
		return ErrCodeSSHConnectionFail
	case errors.ErrExec:
		return ErrCodeCommandFailed
	case errors.ErrStep:
		return ErrCodeStepFailed
	}
	return ErrCodeUnknown
}

func probeErrorToJSON(probeErr *host.ProbeError) *JSONError {
	code := ErrCodeSSHConnectionFail
	switch probeErr.Reason {
	case host.ProbeFailTimeout:
		code = ErrCodeSSHTimeout
	case host.ProbeFailAuth:
		code = ErrCodeSSHAuthFailed
	case host.ProbeFailHostKey:
		code = ErrCodeSSHHostKey
	case host.ProbeFailCommand:
		code = ErrCodeCommandFailed
	}

	return &JSONError{
		Code:       code,
		Message:    probeErr.Error(),
		Suggestion: probeErr.Reason.Hint(),
		Details: map[string]interface{}{
			"reason": probeErr.Reason.String(),
			"target": probeErr.Target,
		},
	}
}
