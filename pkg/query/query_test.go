package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/pubmed_feed/pkg/llm"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

type stubCompleter struct {
	replies map[string]string
	calls   []llm.Request
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls = append(s.calls, req)
	if r, ok := s.replies[req.User]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: connection refused", dm.ErrGeneration)
}

func TestTranslateUsesModelOutput(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{
		"AI in cancer diagnosis": `("artificial intelligence") AND (cancer)[Title/Abstract]`,
	}}
	tr := NewTranslator(stub, nil)

	q, err := tr.Translate(context.Background(), "  AI in cancer diagnosis ")
	require.NoError(t, err)
	assert.Equal(t, `("artificial intelligence") AND (cancer)[Title/Abstract]`, q)

	require.Len(t, stub.calls, 1)
	assert.InDelta(t, 0.3, stub.calls[0].Temperature, 1e-6)
	assert.Equal(t, 500, stub.calls[0].MaxTokens)
	assert.Contains(t, stub.calls[0].System, "MeSH")
}

func TestTranslateFallsBackOnce(t *testing.T) {
	stub := &stubCompleter{}
	tr := NewTranslator(stub, nil)

	q, err := tr.Translate(context.Background(), "单细胞测序")
	assert.Equal(t, "(单细胞测序)[Title/Abstract]", q)
	assert.True(t, errors.Is(err, dm.ErrGeneration))
	assert.Len(t, stub.calls, 1, "no retries on the primary call")
}

func TestTranslateAllKeepsOrder(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"a": "qa", "c": "qc"}}
	tr := NewTranslator(stub, nil)

	qs, err := tr.TranslateAll(context.Background(), []string{"a", "b", "c"})
	assert.Error(t, err)
	assert.Equal(t, []string{"qa", "(b)[Title/Abstract]", "qc"}, qs)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, "", Combine(nil))
	assert.Equal(t, "only", Combine([]string{"only"}))
	assert.Equal(t, "(a AND b) OR (c)", Combine([]string{"a AND b", "c"}))
}
