package portaudio

import (
	"errors"
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-trial/core/capture"
)

func TestOpenErrorMapsHostPermissionErrors(t *testing.T) {
	denied := []portaudio.UnanticipatedHostError{
		{HostApiType: portaudio.ALSA, Code: -13, Text: "Permission denied"},
		{HostApiType: portaudio.OSS, Code: -1, Text: ""},
		{HostApiType: portaudio.CoreAudio, Code: 0x70726D3F, Text: ""},
		{HostApiType: portaudio.WASAPI, Code: -2147024891, Text: ""},
		{HostApiType: portaudio.JACK, Code: 0, Text: "Access denied to audio server"},
	}
	for _, hostErr := range denied {
		err := openError(hostErr)
		if !errors.Is(err, capture.ErrPermissionDenied) {
			t.Fatalf("expected %+v to map to ErrPermissionDenied, got %v", hostErr, err)
		}
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			t.Fatalf("expected %+v not to be reported as unavailable", hostErr)
		}
	}
}

func TestOpenErrorMapsOtherFailuresToUnavailable(t *testing.T) {
	others := []error{
		portaudio.UnanticipatedHostError{HostApiType: portaudio.ALSA, Code: -16, Text: "Device or resource busy"},
		portaudio.UnanticipatedHostError{HostApiType: portaudio.CoreAudio, Code: 13, Text: ""},
		portaudio.NoDefaultInputDevice,
		portaudio.DeviceUnavailable,
	}
	for _, other := range others {
		err := openError(other)
		if !errors.Is(err, capture.ErrDeviceUnavailable) || errors.Is(err, capture.ErrPermissionDenied) {
			t.Fatalf("expected %v to map to ErrDeviceUnavailable only, got %v", other, err)
		}
		if !errors.Is(err, other) {
			t.Fatalf("expected original error to be kept, got %v", err)
		}
	}
}
