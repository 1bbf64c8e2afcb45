package inventory

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeLotNumber quita espacios y pasa a mayúsculas para que "l-001" y "L-001 " sean el mismo lote.
func NormalizeLotNumber(s string) string {
	// Un Caser guarda estado; se crea uno por llamada.
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}
