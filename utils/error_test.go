package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		kind   ErrorKind
		status int
	}{
		{NotFoundError("tenancy not found"), KindNotFound, http.StatusNotFound},
		{ForbiddenError("nope"), KindForbidden, http.StatusForbidden},
		{BadRequestError("bad %d", 1), KindBadRequest, http.StatusBadRequest},
		{ConflictError("already paid"), KindConflict, http.StatusBadRequest},
		{InternalError("failed", errors.New("disk full")), KindInternal, http.StatusInternalServerError},
		{errors.New("plain"), KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err), tc.err.Error())
		assert.Equal(t, tc.status, HTTPStatus(KindOf(tc.err)), tc.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("confirm tenancy: %w", ConflictError("tenancy is already confirmed"))
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(nil, KindConflict))
	assert.Equal(t, "tenancy is already confirmed", PublicMessage(err))
}

func TestInternalCauseIsHidden(t *testing.T) {
	cause := errors.New("connection refused")
	err := InternalError("failed to load invoice", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("boom")))
}
