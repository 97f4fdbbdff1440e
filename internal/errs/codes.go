package errs

import (
	"fmt"
	"net/http"
	"strings"
)

// Code is a stable numeric error code exposed to API clients.
type Code int

const (
	CodeRouteNotFound          Code = 1000
	CodeTableNotFound          Code = 1001
	CodeArgumentCountMismatch  Code = 1002
	CodeRecordNotFound         Code = 1003
	CodeColumnNotFound         Code = 1005
	CodeTableAlreadyExists     Code = 1006
	CodeColumnAlreadyExists    Code = 1007
	CodeMessageNotReadable     Code = 1008
	CodeDuplicateKey           Code = 1009
	CodeDataIntegrityViolation Code = 1010
	CodeInputValidationFailed  Code = 1013
	CodeOperationNotSupported  Code = 1015
	CodeUnsupportedType        Code = 1022
	CodeUnknown                Code = 9999
)

type codeInfo struct {
	template string
	status   int
	kind     ErrKind
}

var codes = map[Code]codeInfo{
	CodeRouteNotFound:          {"Route '%s' not found", http.StatusNotFound, ErrKindNotFound},
	CodeTableNotFound:          {"Table '%s' not found", http.StatusNotFound, ErrKindNotFound},
	CodeArgumentCountMismatch:  {"Argument count mismatch in '%s'", http.StatusUnprocessableEntity, ErrKindInvalidInput},
	CodeRecordNotFound:         {"Record '%s' not found", http.StatusNotFound, ErrKindNotFound},
	CodeColumnNotFound:         {"Column '%s' not found", http.StatusNotFound, ErrKindNotFound},
	CodeTableAlreadyExists:     {"Table '%s' already exists", http.StatusConflict, ErrKindConflict},
	CodeColumnAlreadyExists:    {"Column '%s' already exists", http.StatusConflict, ErrKindConflict},
	CodeMessageNotReadable:     {"Cannot read HTTP message", http.StatusUnprocessableEntity, ErrKindInvalidInput},
	CodeDuplicateKey:           {"Duplicate key exception", http.StatusConflict, ErrKindConflict},
	CodeDataIntegrityViolation: {"Data integrity violation", http.StatusConflict, ErrKindConflict},
	CodeInputValidationFailed:  {"Input validation failed for '%s'", http.StatusUnprocessableEntity, ErrKindInvalidInput},
	CodeOperationNotSupported:  {"Operation '%s' not supported", http.StatusMethodNotAllowed, ErrKindUnsupported},
	CodeUnsupportedType:        {"Unsupported type '%s'", http.StatusInternalServerError, ErrKindUnsupported},
	CodeUnknown:                {"%s", http.StatusInternalServerError, ErrKindUnknown},
}

// Format interpolates the code's message template.
func (c Code) Format(args ...any) string {
	info, ok := codes[c]
	if !ok {
		info = codes[CodeUnknown]
	}
	if !strings.Contains(info.template, "%") {
		return info.template
	}
	if len(args) == 0 {
		args = []any{""}
	}
	return fmt.Sprintf(info.template, args[0])
}

// Status returns the HTTP status associated with the code.
func (c Code) Status() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Kind returns the ErrKind associated with the code.
func (c Code) Kind() ErrKind {
	if info, ok := codes[c]; ok {
		return info.kind
	}
	return ErrKindUnknown
}

// Status maps any error to the HTTP status a handler should answer with.
func Status(err error) int {
	if code := CodeOf(err); code != 0 {
		return code.Status()
	}
	switch kindOf(err) {
	case ErrKindNotFound:
		return http.StatusNotFound
	case ErrKindInvalidInput:
		return http.StatusUnprocessableEntity
	case ErrKindConflict:
		return http.StatusConflict
	case ErrKindPermissionDenied:
		return http.StatusForbidden
	case ErrKindTimeout:
		return http.StatusGatewayTimeout
	case ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
