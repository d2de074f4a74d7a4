package prompt

import "fmt"

// GetSystemPrompt sets the assessor role and the strict JSON contract.
func GetSystemPrompt() string {
	return `Jesteś ekspertem rzeczoznawcą samochodowym. Odpowiadasz wyłącznie jednym obiektem JSON (bez markdown, bez komentarzy), zgodnym ze schematem:
{ "damages": "Szczegółowy opis widocznych uszkodzeń", "symptoms": "Potencjalne objawy techniczne" }`
}

// GetUserPrompt builds the instruction sent next to the photos.
func GetUserPrompt(description string) string {
	return fmt.Sprintf(`Jesteś ekspertem rzeczoznawcą samochodowym. Przeanalizuj zdjęcia i opis: "%s".
Zwróć JSON:
{ "damages": "Szczegółowy opis widocznych uszkodzeń", "symptoms": "Potencjalne objawy techniczne" }`, description)
}
