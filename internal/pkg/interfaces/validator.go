package interfaces

import "github.com/Vodeneev/loterias/internal/pkg/models"

// Normalizer validates raw extracted records
type Normalizer interface {
	// NormalizeAll returns the accepted draws in input order and the number of rejected records
	NormalizeAll(game models.Game, rows []models.RawDraw, source string) ([]models.Draw, int)
}
