package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSegments() []SubtitleSegment {
	return []SubtitleSegment{
		{StartSeconds: 0, EndSeconds: 1.5, Text: "Hello there", Confidence: 0.9},
		{StartSeconds: 1.5, EndSeconds: 3.125, Text: "second\nline wraps", Confidence: 0.8},
	}
}

func TestSubtitleSegment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		seg     SubtitleSegment
		wantErr bool
	}{
		{"valid", SubtitleSegment{StartSeconds: 0, EndSeconds: 1, Text: "hi", Confidence: 0.5}, false},
		{"negative start", SubtitleSegment{StartSeconds: -1, EndSeconds: 1, Text: "hi"}, true},
		{"end not after start", SubtitleSegment{StartSeconds: 2, EndSeconds: 2, Text: "hi"}, true},
		{"blank text", SubtitleSegment{StartSeconds: 0, EndSeconds: 1, Text: "   "}, true},
		{"confidence too high", SubtitleSegment{StartSeconds: 0, EndSeconds: 1, Text: "hi", Confidence: 1.1}, true},
		{"confidence negative", SubtitleSegment{StartSeconds: 0, EndSeconds: 1, Text: "hi", Confidence: -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmitSRT_RoundTrip(t *testing.T) {
	segs := sampleSegments()
	srt := EmitSRT(segs)

	assert.Contains(t, srt, "1\n00:00:00,000 --> 00:00:01,500\nHello there")
	assert.Contains(t, srt, "2\n00:00:01,500 --> 00:00:03,125\nsecond line wraps")

	parsed, err := ParseSRT(srt)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.InDelta(t, segs[0].StartSeconds, parsed[0].StartSeconds, 0.001)
	assert.InDelta(t, segs[0].EndSeconds, parsed[0].EndSeconds, 0.001)
	assert.Equal(t, "Hello there", parsed[0].Text)
	assert.Equal(t, "second line wraps", parsed[1].Text)
}

func TestParseSRT_MalformedTimeRange(t *testing.T) {
	_, err := ParseSRT("1\nnot a time range\nhello\n")
	assert.Error(t, err)
}

func TestEmitVTT(t *testing.T) {
	vtt := EmitVTT(sampleSegments())
	assert.True(t, len(vtt) > len("WEBVTT\n\n"))
	assert.Contains(t, vtt, "WEBVTT\n\n")
	assert.Contains(t, vtt, "00:00:00.000 --> 00:00:01.500")
	assert.NotContains(t, vtt, ",000") // VTT uses '.', never SRT's ','
}

func TestEmitPlainText(t *testing.T) {
	txt := EmitPlainText(sampleSegments())
	assert.Equal(t, "Hello there\nsecond line wraps\n", txt)
}

func TestWithCreditLine_Disabled(t *testing.T) {
	segs := sampleSegments()
	out := WithCreditLine(segs, false, 0, time.Now())
	assert.Equal(t, segs, out)
}

func TestWithCreditLine_Enabled(t *testing.T) {
	segs := sampleSegments()
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	out := WithCreditLine(segs, true, 0, at)

	require.Len(t, out, len(segs)+1)
	credit := out[len(out)-1]
	assert.Equal(t, segs[1].EndSeconds+5, credit.StartSeconds)
	assert.Equal(t, segs[1].EndSeconds+10, credit.EndSeconds)
	assert.Contains(t, credit.Text, CreditProduct)
}

func TestFormatTimestamp_NegativeClampsToZero(t *testing.T) {
	assert.Equal(t, "00:00:00,000", formatTimestamp(-5))
}
