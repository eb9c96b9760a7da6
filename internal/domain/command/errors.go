package command

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a command failure
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuthentication
	KindValidation
	KindTrading
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NETWORK"
	case KindAuthentication:
		return "AUTHENTICATION"
	case KindValidation:
		return "VALIDATION"
	case KindTrading:
		return "TRADING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the kind as its upper-case name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes an upper- or lower-case kind name; unrecognized names become KindUnknown
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "NETWORK":
		*k = KindNetwork
	case "AUTHENTICATION":
		*k = KindAuthentication
	case "VALIDATION":
		*k = KindValidation
	case "TRADING":
		*k = KindTrading
	default:
		*k = KindUnknown
	}
	return nil
}

// Kind sentinels, matched by errors.Is against any *CommandError of the same kind
var (
	ErrNetwork        = errors.New("network error")
	ErrAuthentication = errors.New("authentication error")
	ErrValidation     = errors.New("validation error")
	ErrTrading        = errors.New("trading error")
	ErrUnknown        = errors.New("unknown error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindAuthentication:
		return ErrAuthentication
	case KindValidation:
		return ErrValidation
	case KindTrading:
		return ErrTrading
	default:
		return ErrUnknown
	}
}

// CommandError is the typed failure of a backend command
type CommandError struct {
	Kind    Kind
	Message string
	Code    string
	context map[string]any
	Err     error // underlying transport failure, if any
}

// NewError builds a CommandError. ctx is copied.
func NewError(kind Kind, message, code string, ctx map[string]any) *CommandError {
	return &CommandError{
		Kind:    kind,
		Message: message,
		Code:    code,
		context: copyContext(ctx),
	}
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(e.Kind.String()))
	b.WriteString(" error")
	if cmd, ok := e.context["command"].(string); ok && cmd != "" {
		b.WriteString(" [")
		b.WriteString(cmd)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " (code=%s)", e.Code)
	}
	return b.String()
}

// Unwrap returns the underlying transport failure
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *CommandError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Context returns a copy of the command context (command name, args, timeout)
func (e *CommandError) Context() map[string]any {
	return copyContext(e.context)
}

// Command returns the command name recorded in the context
func (e *CommandError) Command() string {
	cmd, _ := e.context["command"].(string)
	return cmd
}

// KindOf returns the kind of err, or KindUnknown when err is not a CommandError
func KindOf(err error) Kind {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Kind
	}
	return KindUnknown
}

// keyword families, checked in order; the first family with a match wins
var families = []struct {
	kind     Kind
	keywords []string
}{
	{KindAuthentication, []string{"authentication", "unauthorized", "invalid credentials"}},
	{KindValidation, []string{"validation", "invalid input", "bad request"}},
	{KindTrading, []string{"trading", "order", "position"}},
	{KindNetwork, []string{"network", "connection", "timeout"}},
}

// Classify maps a failure message to a kind by keyword family.
// Best effort: a message matching no family is KindUnknown.
func Classify(message string) Kind {
	lower := strings.ToLower(message)
	for _, family := range families {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				return family.kind
			}
		}
	}
	return KindUnknown
}

// FromFailure converts a raw transport failure into a classified CommandError
func FromFailure(err error, command string, args any) *CommandError {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}

	message := "unknown failure"
	if err != nil {
		message = err.Error()
	}

	e := NewError(Classify(message), message, "", callContext(command, args))
	e.Err = err
	return e
}

// FromEnvelope converts a success=false envelope into a classified CommandError
func FromEnvelope(env Envelope, command string, args any) *CommandError {
	message := env.Error
	if message == "" {
		message = "command failed"
	}
	return NewError(Classify(message), message, env.Code, callContext(command, args))
}

// Timeout builds the Network error returned when a call outlives its timer
func Timeout(command string, timeout time.Duration) *CommandError {
	return NewError(
		KindNetwork,
		fmt.Sprintf("command timed out after %dms", timeout.Milliseconds()),
		"TIMEOUT",
		map[string]any{
			"command":   command,
			"timeoutMs": timeout.Milliseconds(),
		},
	)
}

func callContext(command string, args any) map[string]any {
	ctx := map[string]any{"command": command}
	if args != nil {
		ctx["args"] = args
	}
	return ctx
}

func copyContext(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
