package miniaudio

import (
	"errors"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-trial/core/capture"
)

func TestOpenErrorMapsAccessDeniedToPermission(t *testing.T) {
	err := openError(malgo.ErrAccessDenied)
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("expected a refused microphone not to be reported as unavailable")
	}
	if !errors.Is(err, malgo.ErrAccessDenied) {
		t.Fatalf("expected backend error to be kept, got %v", err)
	}
}

func TestOpenErrorMapsOtherFailuresToUnavailable(t *testing.T) {
	for _, backendErr := range []error{malgo.ErrDoesNotExist, malgo.ErrFailedToOpenBackendDevice, malgo.ErrNoBackend} {
		err := openError(backendErr)
		if !errors.Is(err, capture.ErrDeviceUnavailable) || errors.Is(err, capture.ErrPermissionDenied) {
			t.Fatalf("expected %v to map to ErrDeviceUnavailable only, got %v", backendErr, err)
		}
	}
}

func TestCaptureStreamReportsOnlyUnexpectedStops(t *testing.T) {
	var reported []error
	stream := &captureStream{onError: func(err error) { reported = append(reported, err) }}

	stream.stopped()
	if len(reported) != 1 || !errors.Is(reported[0], errDeviceStopped) {
		t.Fatalf("expected an unexpected stop to be reported, got %v", reported)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	stream.stopped()
	if len(reported) != 1 {
		t.Fatalf("expected no report after close, got %v", reported)
	}
}
