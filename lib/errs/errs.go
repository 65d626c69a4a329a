// Package errs holds the typed error taxonomy shared by C1, C2 and C3.
//
// Every type here that wraps an underlying error (SecretError, ProtocolError,
// ImportError, ConfigError) implements Unwrap so callers can use
// errors.As/errors.Is; VariableError wraps nothing and has no Unwrap. Each
// is also wrapped with github.com/gravitational/trace at the
// component boundary that raises it, giving trace.IsNotFound and friends a
// useful answer without duplicating that logic in every error type.
package errs

import "fmt"

// SecretErrorKind enumerates the C1 failure taxonomy of spec §7.
type SecretErrorKind string

const (
	SecretBackendUnavailable SecretErrorKind = "backend_unavailable"
	SecretBackendLocked      SecretErrorKind = "backend_locked"
	SecretNotFound           SecretErrorKind = "not_found"
	SecretRenameFailed       SecretErrorKind = "rename_failed"
	SecretDecryptionFailed   SecretErrorKind = "decryption_failed"
	SecretProtocolError      SecretErrorKind = "protocol_error"
)

// RenameStage names the step of the retrieve→store→delete rename sequence
// that failed, so callers can tell whether the old key is still intact.
type RenameStage string

const (
	RenameStageRetrieve RenameStage = "retrieve"
	RenameStageStore    RenameStage = "store"
	RenameStageDelete   RenameStage = "delete"
)

// SecretError is the C1 error type described in spec §7.
type SecretError struct {
	Kind  SecretErrorKind
	Stage RenameStage // only set when Kind == SecretRenameFailed
	Key   string
	Err   error
}

func (e *SecretError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("secret: %s at stage %q for key %q: %v", e.Kind, e.Stage, e.Key, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("secret: %s for key %q: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("secret: %s for key %q", e.Kind, e.Key)
}

func (e *SecretError) Unwrap() error { return e.Err }

// NewSecretError builds a SecretError not related to a rename.
func NewSecretError(kind SecretErrorKind, key string, err error) *SecretError {
	return &SecretError{Kind: kind, Key: key, Err: err}
}

// NewRenameError builds the rename-specific SecretError variant. Per spec
// §4.1, a failure at RenameStageStore or later must leave the old key
// intact; the caller is responsible for not having deleted it yet.
func NewRenameError(stage RenameStage, key string, err error) *SecretError {
	return &SecretError{Kind: SecretRenameFailed, Stage: stage, Key: key, Err: err}
}

// IsNotFound reports whether err is (or wraps) a SecretError of kind NotFound.
func IsNotFound(err error) bool {
	var se *SecretError
	return asSecretError(err, &se) && se.Kind == SecretNotFound
}

func asSecretError(err error, target **SecretError) bool {
	for err != nil {
		if se, ok := err.(*SecretError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ProtocolErrorKind enumerates the C2 failure taxonomy of spec §7.
type ProtocolErrorKind string

const (
	ProtoConnectionFailed    ProtocolErrorKind = "connection_failed"
	ProtoAuthenticationFailed ProtocolErrorKind = "authentication_failed"
	ProtoTimeout             ProtocolErrorKind = "timeout"
	ProtoServerDisconnected  ProtocolErrorKind = "server_disconnected"
	ProtoTLSError            ProtocolErrorKind = "tls_error"
	ProtoUnsupported         ProtocolErrorKind = "unsupported"
	ProtoChannelError        ProtocolErrorKind = "channel_error"
)

// ProtocolError is the C2 error type described in spec §7.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rdp: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("rdp: %s", e.Kind)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError builds a ProtocolError.
func NewProtocolError(kind ProtocolErrorKind, err error) *ProtocolError {
	return &ProtocolError{Kind: kind, Err: err}
}

// ErrEmbeddedUnavailable signals that the embedded RDP engine is not
// available: it is returned by the stub engine (no rustconn_rdp build tag)
// and by Worker.Run when no engine factory is set. Exhausted reconnect
// attempts are reported with the last transport error instead.
var ErrEmbeddedUnavailable = NewProtocolError(ProtoUnsupported, fmt.Errorf("embedded RDP engine unavailable"))

// VariableErrorKind enumerates the C3 failure taxonomy of spec §7.
type VariableErrorKind string

const (
	VarUndefined         VariableErrorKind = "undefined"
	VarCircularReference VariableErrorKind = "circular_reference"
	VarMaxDepthExceeded  VariableErrorKind = "max_depth_exceeded"
	VarInvalidSyntax     VariableErrorKind = "invalid_syntax"
	VarUnsafeValue       VariableErrorKind = "unsafe_value"
)

// VariableError is the C3 error type described in spec §7.
type VariableError struct {
	Kind   VariableErrorKind
	Name   string
	Reason string
}

func (e *VariableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("variable %q: %s: %s", e.Name, e.Kind, e.Reason)
	}
	return fmt.Sprintf("variable %q: %s", e.Name, e.Kind)
}

// NewVariableError builds a VariableError.
func NewVariableError(kind VariableErrorKind, name, reason string) *VariableError {
	return &VariableError{Kind: kind, Name: name, Reason: reason}
}

// ImportErrorKind enumerates the import/export failure taxonomy of spec §7.
type ImportErrorKind string

const (
	ImportTooLarge          ImportErrorKind = "too_large"
	ImportParseFailure      ImportErrorKind = "parse_failure"
	ImportUnsupportedVersion ImportErrorKind = "unsupported_version"
)

// ImportError is surfaced per-file in an import report; it never aborts the
// whole batch.
type ImportError struct {
	Kind ImportErrorKind
	File string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %q: %s: %v", e.File, e.Kind, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ConfigError reports malformed or missing configuration. The caller decides
// whether it is recoverable (apply a default) or fatal (show a startup
// dialog); this type only carries the detail.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %q: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
