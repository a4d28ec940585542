package transcriber

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/test"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimulator(t *testing.T) {
	_, err := NewSimulator(-time.Second)
	assert.NotNil(t, err)
	s, err := NewSimulator(0)
	require.Nil(t, err)
	assert.NotNil(t, s)
}

func TestTranscribe_Deterministic(t *testing.T) {
	s, _ := NewSimulator(0)
	r1, err := s.Transcribe(test.Ctx(t), strings.NewReader("audio"))
	require.Nil(t, err)
	r2, err := s.Transcribe(test.Ctx(t), strings.NewReader("other"))
	require.Nil(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, defaultPhrases[5%len(defaultPhrases)], r1)

	r3, err := s.Transcribe(test.Ctx(t), strings.NewReader("a"))
	require.Nil(t, err)
	assert.Equal(t, defaultPhrases[1], r3)
}

func TestTranscribe_Empty(t *testing.T) {
	s, _ := NewSimulator(0)
	_, err := s.Transcribe(test.Ctx(t), strings.NewReader(""))
	require.NotNil(t, err)
	assert.True(t, utils.IsNonRetryable(err))
}

func TestTranscribe_Canceled(t *testing.T) {
	s, _ := NewSimulator(time.Minute)
	ctx, cf := context.WithCancel(test.Ctx(t))
	cf()
	_, err := s.Transcribe(ctx, strings.NewReader("audio"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranscribe_Delay(t *testing.T) {
	s, _ := NewSimulator(20 * time.Millisecond)
	st := time.Now()
	_, err := s.Transcribe(test.Ctx(t), strings.NewReader("audio"))
	require.Nil(t, err)
	assert.GreaterOrEqual(t, time.Since(st), 20*time.Millisecond)
}
