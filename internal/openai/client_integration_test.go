//go:build integration

package openai

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrationClient(t *testing.T) *Client {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}
	return NewClient(apiKey)
}

func TestIntegration_GenerateEmbeddings_RealAPI(t *testing.T) {
	client := integrationClient(t)

	vectors, err := client.GenerateEmbeddings(context.Background(), []string{
		"Backpropagation computes gradients layer by layer.",
		"Dropout randomly disables units during training.",
	})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], DefaultEmbeddingDimensions)
}

func TestIntegration_Stream_RealAPI(t *testing.T) {
	client := integrationClient(t)

	stream, err := client.Stream(context.Background(), StreamRequest{Prompt: "Reply with the single word: ok"})
	require.NoError(t, err)
	defer stream.Close()

	var text string
	for {
		tok, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		text += tok
	}
	assert.NotEmpty(t, text)
}
