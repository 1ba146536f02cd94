//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

package operator

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_SendRecv(t *testing.T) {
	s := NewStream(2)

	assert.False(t, s.Writer.Send("one", nil))
	assert.False(t, s.Writer.Send("two", nil))

	got, err := s.Reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	got, err = s.Reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, "two", got)
}

func TestStream_RecvEOF(t *testing.T) {
	s := NewStream(1)
	s.Writer.Close()

	got, err := s.Reader.Recv()
	assert.Equal(t, io.EOF, err)
	assert.Nil(t, got)

	// The sequence is finite; EOF persists.
	_, err = s.Reader.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStream_SendAfterReaderClose(t *testing.T) {
	s := NewStream(1)
	s.Reader.Close()
	assert.True(t, s.Writer.Send("dropped", nil))
}

func TestStream_SendError(t *testing.T) {
	s := NewStream(2)
	s.Writer.Send("partial", nil)
	s.Writer.Send(nil, errors.New("producer failed"))
	s.Writer.Close()

	got, err := s.Reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", got)

	_, err = s.Reader.Recv()
	assert.EqualError(t, err, "producer failed")
}

func TestStreamReader_Collect(t *testing.T) {
	s := NewStream(4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			s.Writer.Send(i, nil)
		}
		s.Writer.Close()
	}()

	out, err := s.Reader.Collect()
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 2}, out)
}

func TestStreamReader_CollectStopsOnError(t *testing.T) {
	s := NewStream(4)
	s.Writer.Send("ok", nil)
	s.Writer.Send(nil, errors.New("boom"))
	s.Writer.Close()

	out, err := s.Reader.Collect()
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []any{"ok"}, out)
}

func TestStream_BlockingHandoff(t *testing.T) {
	s := NewStream(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Writer.Send("value", nil)
		s.Writer.Close()
	}()

	got, err := s.Reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, "value", got)
	<-done
}
