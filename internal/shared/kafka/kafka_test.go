package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, Brokers("a:9092, b:9092,"))
	assert.Nil(t, Brokers(""))
}

func TestNewWriter_Topic(t *testing.T) {
	w := NewWriter("localhost:9092", "payment_webhooks")
	assert.Equal(t, "payment_webhooks", w.Topic)
	assert.True(t, w.AllowAutoTopicCreation)
}
