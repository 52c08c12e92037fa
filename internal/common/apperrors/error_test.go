package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("chain", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrAnotherErrMsg := ErrAnotherErr.Msg("another error msg")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErrMsg)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrFirstLevel)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErrMsg)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		goErr := fmt.Errorf("go error")
		assert.ErrorIs(t, ErrFirstLevel.Err(goErr), goErr)
		assert.NotErrorIs(t, ErrFirstLevel, ErrAnotherErr)
	})

	t.Run("status code", func(t *testing.T) {
		ErrBase := New("base").SetStatusCode(http.StatusNotFound)
		assert.Equal(t, http.StatusNotFound, ErrBase.StatusCode())
		assert.Equal(t, http.StatusNotFound, ErrBase.New("child").StatusCode())
		assert.Equal(t, http.StatusNotFound, ErrBase.Msg("child").StatusCode())
		assert.Equal(t, http.StatusBadRequest, ErrBase.SetStatusCode(http.StatusBadRequest).StatusCode())
		assert.Equal(t, http.StatusNotFound, ErrBase.StatusCode())
	})

	t.Run("expand", func(t *testing.T) {
		cause := errors.New("connection refused")
		ErrBase := New("call failed")
		assert.Equal(t, "call failed", ErrBase.Err(cause).ErrorAll())
		assert.Equal(t, "call failed: connection refused", ErrBase.SetExpandError(true).Err(cause).ErrorAll())
	})
}
