package tsm

// SegmentWindow tracks the sliding window state for a segmented transfer,
// following Clause 5.4.3's actual-window-size negotiation: the sender may
// have at most ProposedWindowSize unacknowledged segments outstanding.
type SegmentWindow struct {
	WindowSize    uint8
	NextSequence  uint8
	LastAckedSeq  uint8
	segments      [][]byte
}

// NewSegmentWindow splits payload into segments no larger than maxSize and
// prepares a window of the given size for transmission.
func NewSegmentWindow(payload []byte, maxSize int, windowSize uint8) *SegmentWindow {
	if maxSize <= 0 {
		maxSize = len(payload)
	}
	var segments [][]byte
	for len(payload) > 0 {
		n := maxSize
		if n > len(payload) {
			n = len(payload)
		}
		segments = append(segments, payload[:n])
		payload = payload[n:]
	}
	if len(segments) == 0 {
		segments = [][]byte{{}}
	}
	return &SegmentWindow{WindowSize: windowSize, segments: segments}
}

// TotalSegments reports how many segments the window was split into.
func (w *SegmentWindow) TotalSegments() int { return len(w.segments) }

// Segment returns segment i and whether more segments follow it.
func (w *SegmentWindow) Segment(i int) (data []byte, moreFollows bool) {
	return w.segments[i], i < len(w.segments)-1
}

// InFlight reports how many segments are currently unacknowledged,
// bounded by WindowSize.
func (w *SegmentWindow) InFlight() uint8 {
	return w.NextSequence - w.LastAckedSeq
}

// CanSend reports whether another segment may be transmitted without
// exceeding the negotiated window size.
func (w *SegmentWindow) CanSend() bool {
	return int(w.InFlight()) < int(w.WindowSize)
}

// Ack advances the acknowledged sequence number, as reported by a
// Segment-ACK's actual window size / sequence number.
func (w *SegmentWindow) Ack(sequenceNumber uint8) {
	w.LastAckedSeq = sequenceNumber
}

// Advance marks the next segment as sent, incrementing NextSequence
// modulo 256 per Clause 5.4.3.
func (w *SegmentWindow) Advance() {
	w.NextSequence++
}
