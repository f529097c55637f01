// Package gemini implements vision.Engine on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"figscan/api/internal/util"
	"figscan/api/internal/vision"
)

type Engine struct {
	APIKey       string
	DetectModel  string
	ExplainModel string
}

func New(apiKey, detectModel, explainModel string) *Engine {
	return &Engine{
		APIKey:       strings.TrimSpace(apiKey),
		DetectModel:  strings.TrimSpace(detectModel),
		ExplainModel: strings.TrimSpace(explainModel),
	}
}

func (e *Engine) Name() string { return "gemini" }

var _ vision.Engine = (*Engine)(nil)

// --------------------------- DETECT ---------------------------

// Detect sends the page image with the detection instruction and a strict
// response schema. One attempt; the caller decides what a failure means.
func (e *Engine) Detect(ctx context.Context, image []byte, mime string) ([]vision.Detection, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.DetectModel)
	if m == nil {
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   detectionSchema(),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(util.LoadPrompt("detect", vision.DetectInstruction))},
	}

	resp, err := m.GenerateContent(ctx, imageParts("Return only the JSON array.", image, mime)...)
	if err != nil {
		return nil, fmt.Errorf("gemini detect: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return nil, fmt.Errorf("gemini detect: %w", vision.ErrEmptyResponse)
	}
	out, err := vision.ParseDetections(txt)
	if err != nil {
		return nil, fmt.Errorf("gemini detect: %w", err)
	}
	return out, nil
}

// --------------------------- EXPLAIN ---------------------------

// Explain asks the explanation model for a Markdown description of a crop.
func (e *Engine) Explain(ctx context.Context, image []byte, mime, label string) (string, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.ExplainModel)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0.2),
	}

	prompt := vision.ExplainInstruction(label)
	if tmpl := util.LoadPrompt("explain", ""); tmpl != "" {
		prompt = strings.ReplaceAll(tmpl, "{label}", label)
	}
	resp, err := m.GenerateContent(ctx, imageParts(prompt, image, mime)...)
	if err != nil {
		return "", fmt.Errorf("gemini explain: %w", err)
	}
	txt := strings.TrimSpace(firstText(resp))
	if txt == "" {
		return "", fmt.Errorf("gemini explain: %w", vision.ErrEmptyResponse)
	}
	return txt, nil
}

// --------------------------- helpers ---------------------------

func (e *Engine) client(ctx context.Context) (*genai.Client, error) {
	if e.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	return genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
}

func imageParts(text string, image []byte, mime string) []genai.Part {
	if mime == "" {
		mime = util.SniffMIME(image)
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return []genai.Part{
		genai.Text(text),
		&genai.Blob{MIMEType: mime, Data: image},
	}
}

// detectionSchema mirrors vision.DetectionSchema in Gemini's schema dialect.
func detectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"label": {
					Type:        genai.TypeString,
					Description: "Short label, 2-5 words.",
				},
				"box_2d": {
					Type:        genai.TypeArray,
					Description: "[ymin, xmin, ymax, xmax] normalized to 0-1000.",
					Items: &genai.Schema{
						Type:        genai.TypeNumber,
						Description: "Number between 0 and 1000.",
					},
				},
				"description": {
					Type:        genai.TypeString,
					Description: "One sentence describing the element.",
				},
			},
			Required: []string{"label", "box_2d", "description"},
		},
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
