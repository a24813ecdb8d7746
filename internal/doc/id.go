package doc

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NameToID turns a display name into a document id: NFC normalised, with
// spaces removed and lowercased.
func NameToID(name string) string {
	id := norm.NFC.String(name)
	id = strings.ReplaceAll(id, " ", "")
	return strings.ToLower(id)
}
