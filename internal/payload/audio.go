package payload

// AudioPayload carries a decoded block of audio samples.
type AudioPayload struct {
	Samples      []float32
	SamplingRate int
	Channels     int
	AudioFormat  string
	Start        float64
	End          float64
	sizeBytes    int64
}

func (a AudioPayload) SizeBytes() int64 { return a.sizeBytes }

func (a AudioPayload) Serialize() map[string]any {
	return map[string]any{
		"sampling_rate": a.SamplingRate,
		"channels":      a.Channels,
		"audio_format":  a.AudioFormat,
		"start":         a.Start,
		"end":           a.End,
		"size_bytes":    a.sizeBytes,
		"num_samples":   len(a.Samples),
	}
}

// AudioDraft is the mutable builder for AudioPayload.
type AudioDraft struct {
	Samples      []float32
	SamplingRate int
	Channels     int
	AudioFormat  string
	Start        float64
	End          float64
}

// NewAudioDraft returns an empty builder for AudioPayload.
func NewAudioDraft() *AudioDraft {
	return &AudioDraft{}
}

// CopyFrom seeds the draft from an existing payload, preserving every
// declared field — the basis of the Draft round-trip law.
func (d *AudioDraft) CopyFrom(p AudioPayload) *AudioDraft {
	d.Samples = append([]float32(nil), p.Samples...)
	d.SamplingRate = p.SamplingRate
	d.Channels = p.Channels
	d.AudioFormat = p.AudioFormat
	d.Start = p.Start
	d.End = p.End
	return d
}

func (d *AudioDraft) Compile() Payload {
	return AudioPayload{
		Samples:      d.Samples,
		SamplingRate: d.SamplingRate,
		Channels:     d.Channels,
		AudioFormat:  d.AudioFormat,
		Start:        d.Start,
		End:          d.End,
		sizeBytes:    int64(len(d.Samples)) * 4,
	}
}
