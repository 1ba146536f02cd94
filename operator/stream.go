//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

package operator

import "io"

// Stream is the lazy result sequence an operator may return instead of
// a single value: finite, not restartable, consumed once by the caller
// that unwraps the succeeded result. The producing operator writes
// through Writer; the consumer reads through Reader.
type Stream struct {
	Reader *StreamReader
	Writer *StreamWriter
}

// NewStream creates a stream whose writer can queue up to bufferSize
// partial results before blocking.
func NewStream(bufferSize int) *Stream {
	s := &stream{
		items:  make(chan streamItem, bufferSize),
		closed: make(chan struct{}),
	}
	return &Stream{
		Reader: &StreamReader{s: s},
		Writer: &StreamWriter{s: s},
	}
}

// StreamReader consumes partial results in production order.
type StreamReader struct {
	s *stream
}

// Recv returns the next partial result. It blocks until one is
// available and returns io.EOF once the writer has closed the stream.
func (r *StreamReader) Recv() (any, error) {
	return r.s.recv()
}

// Close abandons the stream; subsequent writer sends are dropped.
func (r *StreamReader) Close() {
	r.s.closeRecv()
}

// Collect drains the stream into a slice. It stops at the first send
// error, returning the results received so far alongside it.
func (r *StreamReader) Collect() ([]any, error) {
	var out []any
	for {
		value, err := r.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, value)
	}
}

// StreamWriter produces partial results.
type StreamWriter struct {
	s *stream
}

// Send queues a partial result, or an error to surface to the
// consumer. It reports true when the reader has abandoned the stream
// and the value was dropped.
func (w *StreamWriter) Send(value any, err error) (closed bool) {
	return w.s.send(value, err)
}

// Close ends the sequence; the reader observes io.EOF after draining.
func (w *StreamWriter) Close() {
	w.s.closeSend()
}

type streamItem struct {
	value any
	err   error
}

type stream struct {
	items  chan streamItem
	closed chan struct{}
}

func (s *stream) recv() (any, error) {
	item, ok := <-s.items
	if !ok {
		return nil, io.EOF
	}
	return item.value, item.err
}

func (s *stream) send(value any, err error) bool {
	select {
	case <-s.closed:
		return true
	default:
	}
	select {
	case <-s.closed:
		return true
	case s.items <- streamItem{value: value, err: err}:
		return false
	}
}

func (s *stream) closeSend() {
	close(s.items)
}

func (s *stream) closeRecv() {
	close(s.closed)
}
