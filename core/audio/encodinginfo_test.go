package audio

import "testing"

func TestDefaultEncodingInfo(t *testing.T) {
	input := GetDefaultEncodingInfo()
	if input.Format != EncodingLinear16 || input.MIMEType() != "audio/pcm;rate=16000" || input.BytesPerSecond() != 32000 {
		t.Fatalf("unexpected input encoding %+v", input)
	}

	output := GetDefaultOutputEncodingInfo()
	if output.Format != EncodingLinear16 || output.MIMEType() != "audio/pcm;rate=24000" {
		t.Fatalf("unexpected output encoding %+v", output)
	}
	if output.IsZero() || !(EncodingInfo{}).IsZero() {
		t.Fatalf("unexpected IsZero results")
	}
}
