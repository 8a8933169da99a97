package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// SubtitleSegment is the value type of §3: a single timed line of text.
type SubtitleSegment struct {
	StartSeconds float64
	EndSeconds   float64
	Text         string
	Confidence   float64
}

// Validate enforces the segment invariants: start >= 0, end > start, text
// non-empty after trim, confidence in [0,1].
func (s SubtitleSegment) Validate() error {
	if s.StartSeconds < 0 {
		return fmt.Errorf("subtitle: startSeconds must be >= 0, got %v", s.StartSeconds)
	}
	if s.EndSeconds <= s.StartSeconds {
		return fmt.Errorf("subtitle: endSeconds (%v) must be > startSeconds (%v)", s.EndSeconds, s.StartSeconds)
	}
	if strings.TrimSpace(s.Text) == "" {
		return fmt.Errorf("subtitle: text must be non-empty after trim")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("subtitle: confidence must be in [0,1], got %v", s.Confidence)
	}
	return nil
}

// formatTimestamp renders seconds as HH:MM:SS,mmm, flooring to the
// millisecond as required by §4.2.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int64(math.Floor(seconds * 1000))
	ms := totalMs % 1000
	totalSec := totalMs / 1000
	s := totalSec % 60
	totalMin := totalSec / 60
	m := totalMin % 60
	h := totalMin / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// EmitSRT renders segments as SubRip text. Indexes are 1-based and
// reassigned on emit; input order is preserved verbatim.
func EmitSRT(segments []SubtitleSegment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(seg.StartSeconds), formatTimestamp(seg.EndSeconds), collapseNewlines(seg.Text))
	}
	return b.String()
}

// collapseNewlines folds embedded newlines into single spaces, used both
// for SRT text bodies and lyric-format lines.
func collapseNewlines(text string) string {
	fields := strings.Fields(strings.ReplaceAll(text, "\r\n", "\n"))
	return strings.Join(fields, " ")
}

// ParseSRT parses SubRip text back into segments. Index lines are consumed
// and discarded (re-assigned on the next emit); blank-line-delimited blocks
// are tolerant of trailing whitespace.
func ParseSRT(data string) ([]SubtitleSegment, error) {
	scanner := bufio.NewScanner(strings.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var segments []SubtitleSegment
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// line is the index; ignored. Next non-blank line is the time range.
		if !scanner.Scan() {
			break
		}
		timeLine := strings.TrimSpace(scanner.Text())
		start, end, err := parseTimeRange(timeLine)
		if err != nil {
			return nil, fmt.Errorf("subtitle: parsing block after index %q: %w", line, err)
		}
		var textLines []string
		for scanner.Scan() {
			text := scanner.Text()
			if strings.TrimSpace(text) == "" {
				break
			}
			textLines = append(textLines, text)
		}
		segments = append(segments, SubtitleSegment{
			StartSeconds: start,
			EndSeconds:   end,
			Text:         collapseNewlines(strings.Join(textLines, "\n")),
			Confidence:   1,
		})
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return segments, nil
}

func parseTimeRange(line string) (start, end float64, err error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed time range %q", line)
	}
	start, err = parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err = parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(ts string) (float64, error) {
	// HH:MM:SS,mmm
	main, ms, ok := strings.Cut(ts, ",")
	if !ok {
		main, ms, ok = strings.Cut(ts, ".")
		if !ok {
			return 0, fmt.Errorf("malformed timestamp %q", ts)
		}
	}
	hms := strings.Split(main, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	h, err := strconv.Atoi(hms[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(hms[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.Atoi(hms[2])
	if err != nil {
		return 0, err
	}
	msVal, err := strconv.Atoi(ms)
	if err != nil {
		return 0, err
	}
	return float64(h)*3600 + float64(m)*60 + float64(sec) + float64(msVal)/1000.0, nil
}

// EmitLyric renders segments in the line-synchronized lyric format used
// for audio sources: "[MM:SS.cc]TEXT" per line, hundredths truncated.
func EmitLyric(segments []SubtitleSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		totalCentis := int64(math.Floor(seg.StartSeconds * 100))
		cs := totalCentis % 100
		totalSec := totalCentis / 100
		s := totalSec % 60
		m := totalSec / 60
		fmt.Fprintf(&b, "[%02d:%02d.%02d]%s\n", m, s, cs, collapseNewlines(seg.Text))
	}
	return b.String()
}

const creditLineFormat = "Transcribed by %s on %s"

// CreditProduct is the product name embedded in the credit line; set once
// by the entry point from build/version info.
var CreditProduct = "subgen"

// WithCreditLine appends an extra segment offsetSeconds after the last
// segment's end, lasting offsetSeconds, when enabled. offsetSeconds
// defaults to 5 per §4.2 when <= 0 is passed.
func WithCreditLine(segments []SubtitleSegment, enabled bool, offsetSeconds float64, at time.Time) []SubtitleSegment {
	if !enabled {
		return segments
	}
	if offsetSeconds <= 0 {
		offsetSeconds = 5
	}
	var lastEnd float64
	for _, seg := range segments {
		if seg.EndSeconds > lastEnd {
			lastEnd = seg.EndSeconds
		}
	}
	credit := SubtitleSegment{
		StartSeconds: lastEnd + offsetSeconds,
		EndSeconds:   lastEnd + offsetSeconds*2,
		Text:         fmt.Sprintf(creditLineFormat, CreditProduct, at.Local().Format("2006-01-02 15:04:05")),
		Confidence:   1,
	}
	out := make([]SubtitleSegment, 0, len(segments)+1)
	out = append(out, segments...)
	out = append(out, credit)
	return out
}

// formatTimestampVTT renders seconds as HH:MM:SS.mmm, WebVTT's dot-separated
// variant of formatTimestamp's SRT comma.
func formatTimestampVTT(seconds float64) string {
	return strings.Replace(formatTimestamp(seconds), ",", ".", 1)
}

// EmitVTT renders segments as WebVTT text, for the ASR protocol's
// output=vtt mode (§6).
func EmitVTT(segments []SubtitleSegment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestampVTT(seg.StartSeconds), formatTimestampVTT(seg.EndSeconds), collapseNewlines(seg.Text))
	}
	return b.String()
}

// EmitPlainText renders segments as their bare transcript text, one segment
// per line, for the ASR protocol's output=txt mode (§6).
func EmitPlainText(segments []SubtitleSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(collapseNewlines(seg.Text))
		b.WriteByte('\n')
	}
	return b.String()
}
