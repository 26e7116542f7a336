package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/cardelo/internal/adapters/storage"
	. "github.com/smartystreets/goconvey/convey"
)

func exerciseStore(ctx context.Context, open func() storage.Store) {
	Convey("When a missing key is read", func() {
		s := open()
		v, ok, err := s.Get(ctx, storage.KeyState)

		Convey("Then it is absent without error", func() {
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(v, ShouldBeEmpty)
		})
	})

	Convey("When a value is set and overwritten", func() {
		s := open()
		So(s.Set(ctx, storage.KeyState, `[]`), ShouldBeNil)
		So(s.Set(ctx, storage.KeyState, `[["user",{"id":"user","rating":1512,"kFactor":24}]]`), ShouldBeNil)

		Convey("Then the latest value is returned", func() {
			v, ok, err := s.Get(ctx, storage.KeyState)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, `[["user",{"id":"user","rating":1512,"kFactor":24}]]`)
		})

		Convey("Then other slots are untouched", func() {
			_, ok, err := s.Get(ctx, storage.KeyHistory)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("When a key is removed", func() {
		s := open()
		So(s.Set(ctx, storage.KeyHistory, `[]`), ShouldBeNil)
		So(s.Remove(ctx, storage.KeyHistory), ShouldBeNil)
		So(s.Remove(ctx, storage.KeyHistory), ShouldBeNil)

		Convey("Then it is absent", func() {
			_, ok, err := s.Get(ctx, storage.KeyHistory)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("When an empty key is set", func() {
		s := open()

		Convey("Then it is rejected", func() {
			So(errors.Is(s.Set(ctx, "", "x"), storage.ErrEmptyKey), ShouldBeTrue)
		})
	})

	Convey("When the store is closed", func() {
		s := open()
		So(s.Close(), ShouldBeNil)

		Convey("Then further calls fail", func() {
			_, _, err := s.Get(ctx, storage.KeyState)
			So(errors.Is(err, storage.ErrClosed), ShouldBeTrue)
			So(errors.Is(s.Set(ctx, storage.KeyState, "[]"), storage.ErrClosed), ShouldBeTrue)
			So(errors.Is(s.Remove(ctx, storage.KeyState), storage.ErrClosed), ShouldBeTrue)
			So(s.Close(), ShouldBeNil)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	Convey("Given an in-memory store", t, func() {
		exerciseStore(ctx, func() storage.Store { return storage.NewMemoryStore() })
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	Convey("Given a SQLite store in a temp dir", t, func() {
		exerciseStore(ctx, func() storage.Store {
			s, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "cardelo.db"))
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given a value written to a database file", t, func() {
		path := filepath.Join(t.TempDir(), "cardelo.db")
		s, err := storage.OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		So(s.Set(ctx, storage.KeyHistory, `[{"flashcardId":"cat.png"}]`), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When the file is reopened", func() {
			again, err := storage.OpenSQLite(ctx, path)
			So(err, ShouldBeNil)
			defer again.Close()

			Convey("Then the value persisted", func() {
				v, ok, err := again.Get(ctx, storage.KeyHistory)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, `[{"flashcardId":"cat.png"}]`)
				So(again.Path(), ShouldEqual, path)
			})
		})
	})

	Convey("Given a path inside a missing directory", t, func() {
		_, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "missing", "dir", "x.db"))

		Convey("Then opening fails", func() {
			So(errors.Is(err, storage.ErrOpenStore), ShouldBeTrue)
		})
	})
}
