package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aglayrton/fluxo-agua/internal/flowcontrol"
	"github.com/aglayrton/fluxo-agua/internal/reading"
	"github.com/aglayrton/fluxo-agua/internal/repository"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{reading.ErrInvalidValue, http.StatusBadRequest},
		{flowcontrol.ErrInvalidStatus, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", reading.ErrInvalidValue), http.StatusBadRequest},
		{repository.ErrUnknownSensor, http.StatusNotFound},
		{repository.ErrGoalNotFound, http.StatusNotFound},
		{repository.ErrRecipientNotFound, http.StatusNotFound},
		{repository.ErrSensorExists, http.StatusConflict},
		{repository.ErrGoalExists, http.StatusConflict},
		{repository.ErrRecipientExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestValueAsString(t *testing.T) {
	if s, ok := valueAsString("123,45"); !ok || s != "123,45" {
		t.Errorf("Expected string passthrough, got %q ok=%v", s, ok)
	}

	if s, ok := valueAsString(float64(87.3)); !ok || s != "87.3" {
		t.Errorf("Expected number formatting, got %q ok=%v", s, ok)
	}

	if _, ok := valueAsString(nil); ok {
		t.Error("Expected nil value to be rejected")
	}

	if _, ok := valueAsString(true); ok {
		t.Error("Expected boolean value to be rejected")
	}
}
