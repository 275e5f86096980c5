package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/config"
)

type sample struct {
	Query string `json:"query"`
	Hits  int    `json:"hits"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"query":"fox","hits":2}`))
	require.NoError(t, err)
	assert.Equal(t, sample{Query: "fox", Hits: 2}, got)

	_, err = DecodeJSON[sample]([]byte(`{"query":`))
	assert.Error(t, err)
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "search-events")
	defer p.Close()
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}

func TestPublishBatchRejectsUnencodableValue(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "search-events")
	defer p.Close()
	err := p.PublishBatch(context.Background(), []Event{{Key: "k", Value: make(chan int)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshaling event")
}
