// Package projector renders a catalog game into the text blob fed to the embedding model.
package projector

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/gamesub/gamesub/internal/domain/game"
)

const placeholder = "N/A"

// Render returns the embedding input for it. Field order is fixed and absent
// scalars render as N/A, so identical item states always give identical text.
func Render(it *game.Item) string {
	var b strings.Builder
	b.Grow(256 + len(it.Description))

	b.WriteString(it.Name)
	b.WriteString(" | ")
	b.WriteString(it.Description)
	b.WriteString(" | ")

	writeRefs(&b, "Genres", it.Genres)
	writeRefs(&b, "Platforms", it.Platforms)
	writeRefs(&b, "Tags", it.Tags)
	writeRefs(&b, "Stores", it.Stores)

	writeField(&b, "ESRB", orPlaceholder(it.ESRB))

	rating := placeholder
	if it.Rating != nil {
		rating = strconv.FormatFloat(*it.Rating, 'f', -1, 64)
	}
	writeField(&b, "Rating", rating)
	writeField(&b, "Metacritic", intOrPlaceholder(it.Metacritic))
	writeField(&b, "Playtime", intOrPlaceholder(it.Playtime))

	released := placeholder
	if it.Released != nil {
		released = it.Released.UTC().Format("2006-01-02")
	}
	writeField(&b, "Released", released)
	writeField(&b, "Website", orPlaceholder(it.Website))

	return b.String()
}

// Fingerprint returns the hex SHA-256 of Render(it).
func Fingerprint(it *game.Item) string {
	return FingerprintText(Render(it))
}

// FingerprintText hashes an already rendered text.
func FingerprintText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func writeRefs(b *strings.Builder, label string, refs []game.Ref) {
	writeField(b, label, strings.Join(game.Names(refs, placeholder), ", "))
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString(" | ")
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func intOrPlaceholder(v *int) string {
	if v == nil {
		return placeholder
	}
	return strconv.Itoa(*v)
}
