package cli

import (
	"errors"

	"pagetree-cli/internal/drag"
	"pagetree-cli/internal/mutate"
)

type errorPayload struct {
	Code    mutate.Code `json:"code"`
	Message string      `json:"message"`
}

func errorBody(err error) errorPayload {
	code := mutate.CodeOf(err)
	if code == mutate.CodeInternal && errors.Is(err, drag.ErrDisabled) {
		code = mutate.CodeInvalidTarget
	}
	return errorPayload{Code: code, Message: err.Error()}
}
