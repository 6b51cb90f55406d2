// internal/bot/flow/config.go
package flow

import "intake-bot/internal/common/config"

type Config struct {
	MaxTextLength int
	MaxMediaCount int

	GreetingText         string
	AlreadySubmitted     string
	CompletionAck        string
	UseButtonsHint       string
	TextTooLongHint      string
	EmptyTextHint        string
	EmptySelectionHint   string
	NoMediaHint          string
	MediaNotExpected     string
	MediaAddedText       string
	StaleActionHint      string
	SelectionAddedText   string
	SelectionRemovedText string
	OperatorFlagNotice   string
}

func DefaultConfig() *Config {
	return &Config{
		MaxTextLength: 4000,
		MaxMediaCount: 10,

		GreetingText:         "Welcome! Let's get your application started.",
		AlreadySubmitted:     "Your application is already submitted and under review.",
		CompletionAck:        "Thank you! Your application is complete and has been sent for review.",
		UseButtonsHint:       "Please answer using the buttons below.",
		TextTooLongHint:      "That answer is too long ({{max}} characters max). Please shorten it.",
		EmptyTextHint:        "Please send a text answer.",
		EmptySelectionHint:   "Pick at least one option before confirming.",
		NoMediaHint:          "Please attach at least one file before finishing this step.",
		MediaNotExpected:     "This question doesn't take attachments. Please answer it first.",
		MediaAddedText:       "Got it ({{count}} attached). Press Done when finished.",
		StaleActionHint:      "That question was already answered.",
		SelectionAddedText:   "Added",
		SelectionRemovedText: "Removed",
		OperatorFlagNotice:   "We hit a snag with the questionnaire. An operator will follow up shortly.",
	}
}

// FromAppConfig applies the service-level limits onto the defaults.
func FromAppConfig(cfg config.FlowConfig) *Config {
	c := DefaultConfig()
	if cfg.MaxTextLength > 0 {
		c.MaxTextLength = cfg.MaxTextLength
	}
	if cfg.MaxMediaCount > 0 {
		c.MaxMediaCount = cfg.MaxMediaCount
	}
	return c
}
