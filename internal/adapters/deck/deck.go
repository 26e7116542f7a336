// Package deck reads the deck-config.json that names the flashcards of a
// deck. Each item name becomes a flashcard id.
package deck

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ItemNamesKey is the deck-config field holding the card names.
const ItemNamesKey = "itemNames"

// Load reads path and returns its item names in file order. Blank names are
// skipped, surrounding whitespace is trimmed, and repeated names are kept
// once at their first position.
func Load(ctx context.Context, path string) ([]string, error) {
	// JSON documents are valid YAML flow mappings.
	k := koanf.New("::")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadDeck, path, err)
	}

	raw, ok := k.Get(ItemNamesKey).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDeck, path)
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for i, v := range raw {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: entry %d is %T, want string", ErrInvalidDeck, path, i, v)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		ids = append(ids, name)
	}
	return ids, nil
}
