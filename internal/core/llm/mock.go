package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient is a deterministic translation client for tests. Each segment
// is "translated" by prefixing the target language, e.g. "en:hola". Custom
// behavior can be injected through the function fields.
type MockClient struct {
	TranslateBatchFunc func(ctx context.Context, texts []string, sourceLang, targetLang string) (string, Usage, error)
	TranslateOneFunc   func(ctx context.Context, text, sourceLang, targetLang string) (string, Usage, error)
	Unavailable        bool
}

// NewMock creates a mock translation client with default behavior.
func NewMock() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Name() string {
	return "mock"
}

func (m *MockClient) Model() string {
	return "mock-model"
}

func (m *MockClient) IsAvailable() bool {
	return !m.Unavailable
}

func (m *MockClient) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) (string, Usage, error) {
	if m.TranslateBatchFunc != nil {
		return m.TranslateBatchFunc(ctx, texts, sourceLang, targetLang)
	}

	translated := make([]string, len(texts))
	for i, t := range texts {
		translated[i] = mockTranslate(t, targetLang)
	}

	return strings.Join(translated, Separator), Usage{PromptTokens: len(texts), CompletionTokens: len(texts)}, nil
}

func (m *MockClient) TranslateOne(ctx context.Context, text, sourceLang, targetLang string) (string, Usage, error) {
	if m.TranslateOneFunc != nil {
		return m.TranslateOneFunc(ctx, text, sourceLang, targetLang)
	}

	return mockTranslate(text, targetLang), Usage{PromptTokens: 1, CompletionTokens: 1}, nil
}

func mockTranslate(text, targetLang string) string {
	return fmt.Sprintf("%s:%s", targetLang, text)
}
