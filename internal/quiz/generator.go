package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jdvalen/recuerdo/internal/domain"
)

// ErrGeneration wraps any failure to produce a question (provider
// error, malformed JSON, empty question text). The generator never
// substitutes a canned question; callers decide whether to end the
// session or retry.
var ErrGeneration = errors.New("question generation failed")

// retrieveK is how many chunks ground each question.
const retrieveK = 15

// questionTopics seeds retrieval per question number. The selection is
// deterministic so the same question number always explores the same
// theme; numbers past the table reuse the last topic.
var questionTopics = []string{
	"momento gracioso risa divertido chistoso",
	"viaje vacaciones salir pasear lugar",
	"comida favorita comer restaurante pizza",
	"película serie ver juntos película favorita",
	"sueño futuro planes juntos casarnos",
	"pelea enojado discusión problema perdón",
	"sorpresa regalo detalle especial romántico",
	"música canción artista bailar escuchar",
	"familia amigos conocer presentar",
	"primera vez conocimos beso te amo",
}

func seedForQuestion(questionNumber int) string {
	idx := questionNumber - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(questionTopics) {
		idx = len(questionTopics) - 1
	}
	return questionTopics[idx]
}

// ChunkRetriever is the slice of the retriever the generator needs.
type ChunkRetriever interface {
	SearchSeeds(ctx context.Context, seeds []string, k int) ([]domain.SearchResult, error)
}

// ChatClient is the slice of the OpenAI client the generator needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator synthesizes one quiz question per turn from retrieved
// conversation chunks and a chat-completion call.
type Generator struct {
	chat      ChatClient
	retriever ChunkRetriever
	model     string
}

// NewGenerator creates a question generator.
func NewGenerator(chat ChatClient, retriever ChunkRetriever, model string) *Generator {
	return &Generator{chat: chat, retriever: retriever, model: model}
}

// questionPayload is the strict JSON shape requested from the model.
type questionPayload struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	CorrectAnswers []string `json:"correct_answers"`
	Hints          []string `json:"hints"`
	SuccessMessage string   `json:"success_message"`
	Category       string   `json:"category"`
	Difficulty     string   `json:"difficulty"`
	DataSource     string   `json:"data_source"`
}

// Generate produces the question for the given 1-indexed question
// number, grounded in retrieved chunks and constrained against the
// previously asked questions.
func (g *Generator) Generate(ctx context.Context, questionNumber int, previous []domain.Question) (domain.Question, error) {
	seed := seedForQuestion(questionNumber)

	// Each word of the topic row is its own seed; the retriever merges
	// the per-seed results keeping the lowest distance per chunk.
	results, err := g.retriever.SearchSeeds(ctx, strings.Fields(seed), retrieveK)
	if err != nil {
		// Retrieval failure degrades to an ungrounded question rather
		// than aborting the turn; provenance records the gap.
		slog.Warn("Retrieval failed for question seed", "seed", seed, "error", err)
		results = nil
	}

	var messages []domain.Message
	for _, res := range results {
		messages = append(messages, res.Chunk.Messages...)
	}
	extract := Analyze(messages)

	slog.Info("Generating question", "number", questionNumber,
		"seed", seed, "retrieved_chunks", len(results), "relevant_messages", len(messages))

	prompt := buildQuestionPrompt(extract, previous, questionNumber)

	resp, err := g.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generatorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Question{}, fmt.Errorf("%w: empty completion", ErrGeneration)
	}

	var payload questionPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return domain.Question{}, fmt.Errorf("%w: parse completion JSON: %v", ErrGeneration, err)
	}
	if strings.TrimSpace(payload.Question) == "" {
		return domain.Question{}, fmt.Errorf("%w: completion has no question text", ErrGeneration)
	}

	question := payload.toQuestion(extract.Empty())

	// Repeated options across questions are a soft constraint: warn,
	// never reject.
	for _, prev := range previous {
		if overlap := question.OverlapsOptions(prev); len(overlap) > 0 {
			slog.Warn("Generated options overlap a previous question",
				"question_number", questionNumber, "overlap", overlap)
		}
	}

	return question, nil
}

func (p questionPayload) toQuestion(noData bool) domain.Question {
	difficulty := domain.Difficulty(p.Difficulty)
	if !difficulty.IsValid() {
		difficulty = domain.DifficultyMedium
	}

	hints := p.Hints
	if len(hints) > 3 {
		hints = hints[:3]
	}

	success := p.SuccessMessage
	if success == "" {
		success = "¡Correcto!"
	}

	category := p.Category
	if category == "" {
		category = "general"
	}

	source := p.DataSource
	switch {
	case noData:
		source = "Sin datos recuperados: pregunta genérica"
	case source == "":
		source = "Datos de conversación"
	}

	return domain.Question{
		Text:           p.Question,
		Options:        p.Options,
		CorrectAnswers: p.CorrectAnswers,
		Hints:          hints,
		SuccessMessage: success,
		Category:       category,
		Difficulty:     difficulty,
		DataSource:     source,
	}
}
