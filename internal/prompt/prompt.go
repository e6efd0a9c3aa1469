// Package prompt renders the system instruction sent to the chat model.
package prompt

import (
	"encoding/json"
	"strings"

	"adresse/internal/domain"
)

// VocabularySeparator joins the commune list inside the prompt.
const VocabularySeparator = " / "

const intro = `Ceci est une conversation entre un utilisateur (humain) et un assistant (intelligence artificielle).
L'utilisateur va proposer une phrase, qui peut contenir une adresse.
Le but de l'assistant est d'identifier la partie adresse dans cela. L'adresse peut être uniquement l'indication de voirie (rue, boulevard, place, etc...), ou bien la voirie + une commune.
L'assistant doit répondre uniquement sous format JSON de la sorte :
{
"fullText": "la partie contenant l'adresse",
"voie": "la partie voirie de l'adresse",
"commune": "la partie commune de l'adresse, peut être null si non trouvée"
}
`

const outro = `Dernier point, l'assistant DOIT obligatoirement répondre uniquement par le JSON décrit ci dessus. Aucun autre commentaire, pas de quotes en plus, UNIQUEMENT le JSON. Si aucune commune n'est présente, "commune" vaut null.
`

// Build returns the system instruction for the given vocabulary, examples and aliases.
// The output depends only on its inputs. An empty vocabulary omits the commune list.
func Build(vocabulary []string, examples []domain.Example, aliases []domain.Alias) string {
	var b strings.Builder
	b.WriteString(intro)

	if len(vocabulary) > 0 {
		b.WriteString("\nL'ASSISTANT DOIT OBLIGATOIREMENT, S'IL SPECIFIE UNE COMMUNE, LA SELECTIONNER PARMI LA LISTE SUIVANTE :\n")
		b.WriteString(strings.Join(vocabulary, VocabularySeparator))
		b.WriteString("\n")
		if len(aliases) > 0 {
			b.WriteString("\n")
			for i, a := range aliases {
				if i == 0 {
					b.WriteString("Ainsi, s'il identifie comme commune ")
				} else {
					b.WriteString("S'il identifie comme commune ")
				}
				b.WriteString(quote(a.Raw))
				b.WriteString(", il prendra la valeur ")
				b.WriteString(quote(a.Canonical))
				b.WriteString(".\n")
			}
		}
	}

	if len(examples) > 0 {
		b.WriteString("\nExemples :\n")
		for _, ex := range examples {
			b.WriteString("- ")
			b.WriteString(quote(ex.Input))
			b.WriteString(" => réponse attendue :\n")
			b.WriteString(renderResult(ex.Output))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(outro)
	return b.String()
}

// UserMessage returns the user turn for a sentence.
func UserMessage(sentence string) string {
	return strings.TrimSpace(sentence)
}

// Messages assembles the two-turn conversation sent to the model.
func Messages(system, sentence string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: UserMessage(sentence)},
	}
}

func quote(s string) string {
	return `"` + s + `"`
}

func renderResult(r domain.ExtractionResult) string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		// ExtractionResult holds only strings.
		panic(err)
	}
	return string(data)
}
