package quiz

import (
	"fmt"
	"strings"

	"github.com/jdvalen/recuerdo/internal/domain"
)

const generatorSystemPrompt = "Eres un experto en crear quizzes personalizados sobre una relación. " +
	"Respondes SIEMPRE con un único objeto JSON válido, sin formato markdown, con las claves: " +
	`question, options (4 opciones), correct_answers, hints (máximo 3, progresivamente más reveladoras), ` +
	`success_message, category, difficulty (easy|medium|hard), data_source.`

// buildQuestionPrompt assembles the user prompt from the statistical
// extraction, literal excerpts and previously asked questions. When the
// extraction is empty it carries explicit "no data" markers instead of
// skipping the call; the model may still produce a plausible generic
// question.
func buildQuestionPrompt(extract Extract, previous []domain.Question, questionNumber int) string {
	var b strings.Builder

	b.WriteString("DATOS REALES DE LA CONVERSACIÓN:\n\n")

	writeTermSection(&b, "APODOS MÁS USADOS (verificados)", extract.TopNicknames)
	writeTermSection(&b, "FRASES MÁS DICHAS (verificadas)", extract.TopPhrases)
	writeTermSection(&b, "LUGARES MENCIONADOS (verificados)", extract.TopPlaces)
	writeTermSection(&b, "TEMAS FRECUENTES", extract.TopTerms)

	b.WriteString("EJEMPLOS LITERALES DE MENSAJES:\n")
	if len(extract.Examples) == 0 {
		b.WriteString("(no se encontraron datos para este tema)\n")
	}
	for _, ex := range extract.Examples {
		fmt.Fprintf(&b, "- [%s] %s: %q\n", ex.Date, ex.Sender, ex.Content)
	}
	b.WriteString("\n")

	if extract.LastDate != "" {
		fmt.Fprintf(&b, "IMPORTANTE: los datos llegan hasta %s. No preguntes sobre fechas posteriores.\n\n", extract.LastDate)
	}

	b.WriteString("PREGUNTAS ANTERIORES (no repitas temas ni opciones):\n")
	if len(previous) == 0 {
		b.WriteString("ninguna\n")
	}
	for _, q := range previous {
		fmt.Fprintf(&b, "- %s\n", q.Text)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "TAREA: genera la pregunta #%d del quiz sobre la relación. ", questionNumber)
	b.WriteString("Usa únicamente hechos presentes en los datos de arriba. " +
		"Prefiere preguntas generales e interesantes (momentos, lugares, gustos, planes) " +
		"sobre conteos o detalles imposibles de recordar. " +
		"En data_source describe brevemente qué datos respaldan la pregunta.")

	return b.String()
}

func writeTermSection(b *strings.Builder, title string, terms []TermCount) {
	fmt.Fprintf(b, "%s:\n", title)
	if len(terms) == 0 {
		b.WriteString("(ninguno encontrado)\n\n")
		return
	}
	for _, t := range terms {
		fmt.Fprintf(b, "- %q: %d veces\n", t.Term, t.Count)
	}
	b.WriteString("\n")
}
