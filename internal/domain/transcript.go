package domain

// Segment is one timestamped unit of a transcript: a word or a short
// recognizer segment. Times are seconds from the start of the video.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the ordered segment list produced by transcription.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Duration returns the end of the last-ending segment.
func (t Transcript) Duration() float64 {
	var end float64
	for _, s := range t.Segments {
		if s.End > end {
			end = s.End
		}
	}
	return end
}
