package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollo-risk/risk-assistant/internal/model"
)

type published struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	streamErr  error
	createErr  error
	publishErr error

	created []jetstream.StreamConfig
	msgs    []published
}

func (f *fakeJetStream) Stream(context.Context, string) (jetstream.Stream, error) {
	return nil, f.streamErr
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = append(f.created, cfg)
	return nil, f.createErr
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.msgs))}, nil
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "chat.abc-123.turn.success", TurnSubject("abc-123", model.TurnOutcomeSuccess))
	assert.Equal(t, "chat.abc-123.turn.failure", TurnSubject("abc-123", model.TurnOutcomeFailure))
	assert.Equal(t, "chat.abc-123.feedback", FeedbackSubject("abc-123"))
	assert.Equal(t, "chat.a_b_c_.feedback", FeedbackSubject("a.b*c>"))
	assert.Equal(t, "chat.unknown.feedback", FeedbackSubject(""))
}

func TestEnsureStreamExisting(t *testing.T) {
	js := &fakeJetStream{}
	require.NoError(t, newPublisher(js, nil).EnsureStream(context.Background()))
	assert.Empty(t, js.created)
}

func TestEnsureStreamCreates(t *testing.T) {
	js := &fakeJetStream{streamErr: jetstream.ErrStreamNotFound}
	require.NoError(t, newPublisher(js, nil).EnsureStream(context.Background()))

	require.Len(t, js.created, 1)
	assert.Equal(t, StreamName, js.created[0].Name)
	assert.Equal(t, []string{"chat.>"}, js.created[0].Subjects)
}

func TestEnsureStreamLookupError(t *testing.T) {
	js := &fakeJetStream{streamErr: errors.New("timeout")}
	err := newPublisher(js, nil).EnsureStream(context.Background())
	require.Error(t, err)
	assert.Empty(t, js.created)
}

func TestPublishTurn(t *testing.T) {
	js := &fakeJetStream{}
	p := newPublisher(js, nil)

	ev := &model.TurnEvent{
		ID:               "evt-1",
		SessionID:        "sess-1",
		UserID:           "u-1",
		MessageID:        99,
		Outcome:          model.TurnOutcomeSuccess,
		SuggestionSource: "extracted",
		LatencyMs:        120,
		CreatedAt:        time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishTurn(context.Background(), ev))

	require.Len(t, js.msgs, 1)
	assert.Equal(t, "chat.sess-1.turn.success", js.msgs[0].subject)

	var got model.TurnEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &got))
	assert.Equal(t, *ev, got)
}

func TestPublishFeedback(t *testing.T) {
	js := &fakeJetStream{}
	p := newPublisher(js, nil)

	ev := &model.FeedbackEvent{ID: "evt-2", Feedback: model.FeedbackRequest{MessageID: 1, SessionID: "sess-2", Rating: 4}}
	require.NoError(t, p.PublishFeedback(context.Background(), ev))

	require.Len(t, js.msgs, 1)
	assert.Equal(t, "chat.sess-2.feedback", js.msgs[0].subject)
}

func TestPublishError(t *testing.T) {
	js := &fakeJetStream{publishErr: errors.New("no responders")}
	p := newPublisher(js, nil)

	err := p.PublishTurn(context.Background(), &model.TurnEvent{SessionID: "s", Outcome: model.TurnOutcomeFailure})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
}

func TestPublishIgnoresCancelledRequest(t *testing.T) {
	js := &fakeJetStream{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, newPublisher(js, nil).PublishTurn(ctx, &model.TurnEvent{SessionID: "s", Outcome: model.TurnOutcomeSuccess}))
	assert.Len(t, js.msgs, 1)
}
