package pipeline

import (
	"time"

	"github.com/ashokgit/videoresizer-api/internal/media"
)

// Degradation names a fallback the pipeline absorbed instead of failing.
type Degradation string

const (
	// DegradationCTAMissing: the CTA file was absent, the run continued
	// without it.
	DegradationCTAMissing Degradation = "cta_missing"
	// DegradationCTADropped: the CTA clip could not be standardized and
	// was dropped.
	DegradationCTADropped Degradation = "cta_dropped"
	// DegradationConcatDemuxer: tolerant concatenation failed and the
	// stream-copy fallback produced the output.
	DegradationConcatDemuxer Degradation = "concat_demuxer_fallback"
	// DegradationWatermarkSkipped: the watermark image was absent, the
	// overlay was skipped.
	DegradationWatermarkSkipped Degradation = "watermark_skipped"
)

// StageRecord documents one executed stage. Skipped stages leave no record.
type StageRecord struct {
	Stage   Stage
	Note    string
	Elapsed time.Duration
}

// Result reports a completed run.
type Result struct {
	// OutputPath is the caller-requested destination. It is written only
	// when every enabled stage succeeded.
	OutputPath string
	// Info is the probed metadata of the output. Nil when the final probe
	// failed; the output file itself is still valid.
	Info *media.VideoInfo
	// Stages lists executed stages in order.
	Stages []StageRecord
	// Degradations lists absorbed fallbacks, empty on a clean run.
	Degradations []Degradation
	// Elapsed is the wall-clock time of the whole run.
	Elapsed time.Duration
}

// Degraded reports whether any fallback was absorbed.
func (r *Result) Degraded() bool {
	return len(r.Degradations) > 0
}

func (r *Result) record(stage Stage, note string, elapsed time.Duration) {
	r.Stages = append(r.Stages, StageRecord{Stage: stage, Note: note, Elapsed: elapsed})
}

func (r *Result) degrade(d Degradation) {
	r.Degradations = append(r.Degradations, d)
}
