package button

import "errors"

// FakeReader is a test double that returns scripted button states.
type FakeReader struct {
	// Frames contains scripted pressed states to return.
	// Each call to Read() consumes the next frame; the last frame repeats.
	Frames [][]bool

	// index tracks current position in Frames
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given frames.
func NewFakeReader(frames [][]bool) *FakeReader {
	return &FakeReader{Frames: frames}
}

// Read returns the next scripted frame.
func (f *FakeReader) Read() ([]bool, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	if len(f.Frames) == 0 {
		return nil, errors.New("no frames configured")
	}

	frame := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}

	states := make([]bool, len(frame))
	copy(states, frame)
	return states, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
