package storage

import (
	"context"
	"fmt"
)

// LLMUsage represents daily usage statistics for LLM providers.
type LLMUsage struct {
	Date             string
	Provider         string
	Model            string
	Task             string
	PromptTokens     int
	CompletionTokens int
	RequestCount     int
}

// IncrementLLMUsage increments LLM usage counters for the current day.
func (db *DB) IncrementLLMUsage(ctx context.Context, provider, model, task string, promptTokens, completionTokens int) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO llm_usage (date, provider, model, task, prompt_tokens, completion_tokens, request_count)
		VALUES (CURRENT_DATE, $1, $2, $3, $4, $5, 1)
		ON CONFLICT (date, provider, model, task)
		DO UPDATE SET
			prompt_tokens = llm_usage.prompt_tokens + EXCLUDED.prompt_tokens,
			completion_tokens = llm_usage.completion_tokens + EXCLUDED.completion_tokens,
			request_count = llm_usage.request_count + 1,
			updated_at = now()
	`, provider, model, task, promptTokens, completionTokens)
	if err != nil {
		return fmt.Errorf("increment llm usage: %w", err)
	}

	return nil
}

// GetLLMUsageDetails returns per-provider usage rows for the last N days.
func (db *DB) GetLLMUsageDetails(ctx context.Context, days int) ([]LLMUsage, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT date::text, provider, model, task, prompt_tokens, completion_tokens, request_count
		FROM llm_usage
		WHERE date >= CURRENT_DATE - make_interval(days => $1)
		ORDER BY date DESC, provider, model, task
	`, days)
	if err != nil {
		return nil, fmt.Errorf("get llm usage details: %w", err)
	}
	defer rows.Close()

	var usages []LLMUsage

	for rows.Next() {
		var u LLMUsage

		if err := rows.Scan(&u.Date, &u.Provider, &u.Model, &u.Task, &u.PromptTokens, &u.CompletionTokens, &u.RequestCount); err != nil {
			return nil, fmt.Errorf("scan llm usage row: %w", err)
		}

		usages = append(usages, u)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate llm usage rows: %w", rows.Err())
	}

	return usages, nil
}
