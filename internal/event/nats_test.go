package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

type published struct {
	subject string
	data    []byte
}

type fakeStream struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, published{subject: subj, data: data})
	return &nats.PubAck{Stream: StreamName}, nil
}

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", nil)
	_, ok := p.(Noop)
	assert.True(t, ok)
	assert.NoError(t, p.PublishItemPublished(context.Background(), model.ContentItem{ID: "v1"}))
	assert.NoError(t, p.Close())
}

func TestPublishItemWrapsEnvelope(t *testing.T) {
	js := &fakeStream{}
	p := newNatsPub(nil, js, nil)

	item := model.ContentItem{ID: "v-ai-1", Title: "T", Mood: model.MoodCalm}
	require.NoError(t, p.PublishItemPublished(context.Background(), item))

	require.Len(t, js.msgs, 1)
	assert.Equal(t, SubjectItemPublished, js.msgs[0].subject)

	var env struct {
		Type          string            `json:"type"`
		Version       string            `json:"version"`
		CorrelationID string            `json:"correlationId"`
		Payload       model.ContentItem `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &env))
	assert.Equal(t, SubjectItemPublished, env.Type)
	assert.Equal(t, "1.0.0", env.Version)
	assert.NotEmpty(t, env.CorrelationID)
	assert.Equal(t, item, env.Payload)
}

func TestPublishCarriesRequestCorrelationID(t *testing.T) {
	js := &fakeStream{}
	p := newNatsPub(nil, js, nil)

	ctx := telemetry.WithCorrelationID(context.Background(), "corr-42")
	require.NoError(t, p.PublishCommentPosted(ctx, "v1", model.Comment{ID: "c-9", Text: "nice"}))

	require.Len(t, js.msgs, 1)
	var env EventEnvelope
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &env))
	assert.Equal(t, "corr-42", env.CorrelationID)
}

func TestPublishDeduplicatesWithinWindow(t *testing.T) {
	js := &fakeStream{}
	p := newNatsPub(nil, js, nil)
	c := model.Comment{ID: "c-1", Author: "You", Text: "hi"}

	require.NoError(t, p.PublishCommentPosted(context.Background(), "v1", c))
	require.NoError(t, p.PublishCommentPosted(context.Background(), "v1", c))
	require.NoError(t, p.PublishCommentPosted(context.Background(), "v1", model.Comment{ID: "c-2"}))

	assert.Len(t, js.msgs, 2)
	assert.Equal(t, SubjectCommentPosted, js.msgs[1].subject)
}

func TestPublishFailureIsNotRecorded(t *testing.T) {
	js := &fakeStream{err: errors.New("no responders")}
	p := newNatsPub(nil, js, nil)
	item := model.ContentItem{ID: "v1"}

	assert.Error(t, p.PublishItemPublished(context.Background(), item))

	js.err = nil
	require.NoError(t, p.PublishItemPublished(context.Background(), item))
	assert.Len(t, js.msgs, 1)
}
