package session

import "github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"

// ChunkBuffer is the ordered, append-only sequence of captured segments.
// It is not safe for concurrent use; Session guards it.
type ChunkBuffer struct {
	segments []meeting.Segment
	size     int
	frozen   bool
}

// Append adds a copy of data as the next segment. Zero-length deliveries and
// appends after Freeze are ignored and report false.
func (b *ChunkBuffer) Append(data []byte) bool {
	if len(data) == 0 || b.frozen {
		return false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.segments = append(b.segments, meeting.Segment{Seq: len(b.segments), Data: cp})
	b.size += len(cp)
	return true
}

func (b *ChunkBuffer) Freeze() {
	b.frozen = true
}

func (b *ChunkBuffer) Frozen() bool {
	return b.frozen
}

// Len is the number of segments.
func (b *ChunkBuffer) Len() int {
	return len(b.segments)
}

// Size is the total number of bytes.
func (b *ChunkBuffer) Size() int {
	return b.size
}

// Bytes concatenates the segments into the finalized recording.
func (b *ChunkBuffer) Bytes() []byte {
	out := make([]byte, 0, b.size)
	for _, s := range b.segments {
		out = append(out, s.Data...)
	}
	return out
}

// Segments returns a copy that callers may keep.
func (b *ChunkBuffer) Segments() []meeting.Segment {
	out := make([]meeting.Segment, len(b.segments))
	for i, s := range b.segments {
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		out[i] = meeting.Segment{Seq: s.Seq, Data: data}
	}
	return out
}

func (b *ChunkBuffer) Reset() {
	b.segments = nil
	b.size = 0
	b.frozen = false
}
