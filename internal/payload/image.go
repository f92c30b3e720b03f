package payload

// ImagePayload carries a single decoded frame.
type ImagePayload struct {
	Pixels      []byte
	Width       int
	Height      int
	Depth       int
	PixelFormat string
	Timestamp   float64
	sizeBytes   int64
}

func (i ImagePayload) SizeBytes() int64 { return i.sizeBytes }

func (i ImagePayload) Serialize() map[string]any {
	return map[string]any{
		"width":        i.Width,
		"height":       i.Height,
		"depth":        i.Depth,
		"pixel_format": i.PixelFormat,
		"timestamp":    i.Timestamp,
		"size_bytes":   i.sizeBytes,
	}
}

// ImageDraft is the mutable builder for ImagePayload.
type ImageDraft struct {
	Pixels      []byte
	Width       int
	Height      int
	Depth       int
	PixelFormat string
	Timestamp   float64
}

func NewImageDraft() *ImageDraft { return &ImageDraft{} }

func (d *ImageDraft) CopyFrom(p ImagePayload) *ImageDraft {
	d.Pixels = append([]byte(nil), p.Pixels...)
	d.Width = p.Width
	d.Height = p.Height
	d.Depth = p.Depth
	d.PixelFormat = p.PixelFormat
	d.Timestamp = p.Timestamp
	return d
}

func (d *ImageDraft) Compile() Payload {
	return ImagePayload{
		Pixels:      d.Pixels,
		Width:       d.Width,
		Height:      d.Height,
		Depth:       d.Depth,
		PixelFormat: d.PixelFormat,
		Timestamp:   d.Timestamp,
		sizeBytes:   int64(len(d.Pixels)),
	}
}

// VideoPayload carries an ordered sequence of decoded frames.
type VideoPayload struct {
	Frames    []ImagePayload
	FPS       float64
	Start     float64
	End       float64
	sizeBytes int64
}

func (v VideoPayload) SizeBytes() int64 { return v.sizeBytes }

func (v VideoPayload) Serialize() map[string]any {
	return map[string]any{
		"fps":        v.FPS,
		"start":      v.Start,
		"end":        v.End,
		"num_frames": len(v.Frames),
		"size_bytes": v.sizeBytes,
	}
}

// VideoDraft is the mutable builder for VideoPayload.
type VideoDraft struct {
	Frames []ImagePayload
	FPS    float64
	Start  float64
	End    float64
}

func NewVideoDraft() *VideoDraft { return &VideoDraft{} }

func (d *VideoDraft) CopyFrom(p VideoPayload) *VideoDraft {
	d.Frames = append([]ImagePayload(nil), p.Frames...)
	d.FPS = p.FPS
	d.Start = p.Start
	d.End = p.End
	return d
}

func (d *VideoDraft) Compile() Payload {
	var size int64
	for _, f := range d.Frames {
		size += f.SizeBytes()
	}
	return VideoPayload{
		Frames:    d.Frames,
		FPS:       d.FPS,
		Start:     d.Start,
		End:       d.End,
		sizeBytes: size,
	}
}
