package components

import "encoding/json"

// Number is the element constraint of RingBuffer.
type Number interface {
	~int | ~int64 | ~float32 | ~float64
}

// RingBuffer is a fixed-capacity FIFO that overwrites its oldest value.
type RingBuffer[T Number] struct {
	data  []T
	start int
	size  int
}

// NewRingBuffer creates a buffer holding at most capacity values.
func NewRingBuffer[T Number](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when full.
func (r *RingBuffer[T]) Push(v T) {
	if r.size < len(r.data) {
		r.data[(r.start+r.size)%len(r.data)] = v
		r.size++
		return
	}
	r.data[r.start] = v
	r.start = (r.start + 1) % len(r.data)
}

// Len returns the number of stored values.
func (r *RingBuffer[T]) Len() int { return r.size }

// Cap returns the capacity.
func (r *RingBuffer[T]) Cap() int { return len(r.data) }

// Values returns the stored values, oldest first.
func (r *RingBuffer[T]) Values() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(r.start+i)%len(r.data)]
	}
	return out
}

// Mean returns the average of the stored values, 0 when empty.
func (r *RingBuffer[T]) Mean() float64 {
	if r.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.size; i++ {
		sum += float64(r.data[(r.start+i)%len(r.data)])
	}
	return sum / float64(r.size)
}

// Max returns the largest stored value, 0 when empty.
func (r *RingBuffer[T]) Max() T {
	var m T
	for i := 0; i < r.size; i++ {
		v := r.data[(r.start+i)%len(r.data)]
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

type ringJSON[T Number] struct {
	Capacity int `json:"capacity"`
	Values   []T `json:"values"`
}

// MarshalJSON encodes capacity and values oldest first.
func (r *RingBuffer[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(ringJSON[T]{Capacity: len(r.data), Values: r.Values()})
}

// UnmarshalJSON restores a buffer written by MarshalJSON.
func (r *RingBuffer[T]) UnmarshalJSON(b []byte) error {
	var raw ringJSON[T]
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = *NewRingBuffer[T](raw.Capacity)
	for _, v := range raw.Values {
		r.Push(v)
	}
	return nil
}
