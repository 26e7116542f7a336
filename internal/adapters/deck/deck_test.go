package deck_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/cardelo/internal/adapters/deck"
	. "github.com/smartystreets/goconvey/convey"
)

func writeDeck(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck-config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deck config with item names", t, func() {
		path := writeDeck(t, `{
  "itemNames": ["cat", "dog", "", "  fox  ", "cat", "owl"]
}`)

		Convey("When it is loaded", func() {
			ids, err := deck.Load(ctx, path)

			Convey("Then names come back in file order without blanks or repeats", func() {
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"cat", "dog", "fox", "owl"})
			})
		})
	})

	Convey("Given a deck config with dotted file names", t, func() {
		path := writeDeck(t, `{"itemNames": ["cards/cat.png", "cards/dog.jpg"]}`)

		Convey("Then the names are kept verbatim", func() {
			ids, err := deck.Load(ctx, path)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"cards/cat.png", "cards/dog.jpg"})
		})
	})

	Convey("Given an empty itemNames array", t, func() {
		path := writeDeck(t, `{"itemNames": []}`)

		Convey("Then the deck is empty", func() {
			ids, err := deck.Load(ctx, path)
			So(err, ShouldBeNil)
			So(ids, ShouldBeEmpty)
		})
	})

	Convey("Given malformed deck configs", t, func() {
		cases := []struct{ name, content string }{
			{"no itemNames", `{"names": ["cat"]}`},
			{"itemNames not an array", `{"itemNames": "cat"}`},
			{"non-string entry", `{"itemNames": ["cat", 7]}`},
		}
		for _, tc := range cases {
			Convey("When loading "+tc.name, func() {
				_, err := deck.Load(ctx, writeDeck(t, tc.content))

				Convey("Then it reports an invalid deck", func() {
					So(errors.Is(err, deck.ErrInvalidDeck), ShouldBeTrue)
				})
			})
		}
	})

	Convey("Given a missing file", t, func() {
		_, err := deck.Load(ctx, filepath.Join(t.TempDir(), "nope.json"))

		Convey("Then it reports a read error", func() {
			So(errors.Is(err, deck.ErrReadDeck), ShouldBeTrue)
		})
	})
}
