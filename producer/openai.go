// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package producer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/stagecraft-dev/stagecraft/pkg/logging"
)

const systemPrompt = "You are a code migration assistant. You receive the full " +
	"content of one source file and a migration boundary name. Respond with the " +
	"complete migrated file content and nothing else: no fences, no commentary, " +
	"no unified diff."

// OpenAIProducer generates patches through the OpenAI chat completion API.
type OpenAIProducer struct {
	client *openai.Client
	model  string
	root   string
	logger *logging.Logger
}

// NewOpenAIProducer builds an AI-backed producer. The API key is required;
// an empty model defaults to gpt-4o-mini.
func NewOpenAIProducer(apiKey, model, root string, logger *logging.Logger) (*OpenAIProducer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", ErrProduce)
	}
	if model == "" {
		model = "gpt-4o-mini"
		logger.Warn("no model configured, defaulting", "model", model)
	}
	return &OpenAIProducer{
		client: openai.NewClient(apiKey),
		model:  model,
		root:   root,
		logger: logger,
	}, nil
}

func (o *OpenAIProducer) Name() string { return "ai" }

// Produce asks the model for a full migrated rendition of the target file.
func (o *OpenAIProducer) Produce(ctx context.Context, boundary, target string) ([]Patch, error) {
	source, err := os.ReadFile(filepath.Join(o.root, target))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrProduce, target, err)
	}

	prompt := fmt.Sprintf("Boundary: %s\nFile: %s\n\n%s", boundary, target, source)
	o.logger.Debug("requesting migration content", "model", o.model, "target", target)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: OpenAI call for %s: %v", ErrProduce, target, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: OpenAI returned no choices for %s", ErrProduce, target)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	o.logger.Debug("received migration content",
		"target", target, "finish_reason", resp.Choices[0].FinishReason)

	return []Patch{{
		Path:        target,
		Content:     content + "\n",
		Description: fmt.Sprintf("ai migration of %s for boundary %s", target, boundary),
	}}, nil
}
