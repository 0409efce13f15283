package formats

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionCompress Action = "compress"
	ActionConvert  Action = "convert"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionCompress:
		return ActionCompress, nil
	case ActionConvert:
		return ActionConvert, nil
	default:
		return "", fmt.Errorf("unknown action %q (want compress or convert)", s)
	}
}

type Category string

const (
	CategoryImage        Category = "image"
	CategoryHEIC         Category = "heic"
	CategoryVector       Category = "vector"
	CategoryVideo        Category = "video"
	CategoryAudio        Category = "audio"
	CategoryPDF          Category = "pdf"
	CategoryDocument     Category = "document"
	CategoryPresentation Category = "presentation"
	CategorySpreadsheet  Category = "spreadsheet"
	CategoryCSV          Category = "csv"
	CategoryText         Category = "text"
	CategoryEbook        Category = "ebook"
	CategoryArchive      Category = "archive"
	CategoryUnsupported  Category = "unsupported"
)

// Tone tells a renderer whether a hint is informational or a warning.
type Tone string

const (
	ToneMuted  Tone = "muted"
	ToneDanger Tone = "danger"
)

type Hint struct {
	Key  HintKey `json:"key"`
	Text string  `json:"text"`
	Tone Tone    `json:"tone"`
}

// Rule maps an equivalence class of input extensions to its conversion targets.
type Rule struct {
	Category   Category
	Extensions []string
	// Targets are offered in this order; the first one is the default.
	Targets      []string
	ConvertHint  HintKey
	CompressHint HintKey
}

// Advice is the advisor's answer for one extension.
type Advice struct {
	Extension         string   `json:"extension"`
	Category          Category `json:"category"`
	Matched           bool     `json:"matched"`
	Targets           []string `json:"targets"`
	ConvertHint       Hint     `json:"convert_hint"`
	CompressHint      Hint     `json:"compress_hint"`
	CompressSupported bool     `json:"compress_supported"`
}
