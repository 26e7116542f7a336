package history_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/cardelo/internal/domain/history"
	"github.com/okian/cardelo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func record(i int) model.HistoryRecord {
	return model.HistoryRecord{
		Timestamp:             int64(1_700_000_000_000 + i),
		UserRatingBefore:      1500,
		UserRatingAfter:       1512,
		FlashcardRatingBefore: 1500,
		FlashcardRatingAfter:  1484,
		FlashcardID:           fmt.Sprintf("card-%03d.png", i),
		IsCorrect:             i%2 == 0,
	}
}

func TestAppend(t *testing.T) {
	Convey("Given an empty log with the default capacity", t, func() {
		log := history.New()

		So(log.Len(), ShouldEqual, 0)
		So(log.Capacity(), ShouldEqual, 100)

		Convey("When 150 records are appended", func() {
			for i := 0; i < 150; i++ {
				log.Append(record(i))
				So(log.Len(), ShouldBeLessThanOrEqualTo, 100)
			}

			Convey("Then exactly the last 100 remain in order", func() {
				recs := log.Records()
				So(len(recs), ShouldEqual, 100)
				for i, rec := range recs {
					So(rec, ShouldResemble, record(50+i))
				}
			})
		})

		Convey("When fewer records than capacity are appended", func() {
			log.Append(record(1))
			log.Append(record(2))

			Convey("Then nothing is evicted", func() {
				So(log.Records(), ShouldResemble, []model.HistoryRecord{record(1), record(2)})
			})
		})
	})

	Convey("Given a log with capacity 3", t, func() {
		log := history.New(history.WithCapacity(3))
		for i := 0; i < 5; i++ {
			log.Append(record(i))
		}

		Convey("Then the oldest records were evicted first", func() {
			So(log.Records(), ShouldResemble, []model.HistoryRecord{record(2), record(3), record(4)})
		})

		Convey("Then Last returns the newest in chronological order", func() {
			So(log.Last(2), ShouldResemble, []model.HistoryRecord{record(3), record(4)})
			So(len(log.Last(10)), ShouldEqual, 3)
			So(log.Last(0), ShouldBeEmpty)
		})

		Convey("Then Records is a copy", func() {
			recs := log.Records()
			recs[0].FlashcardID = "mutated"
			So(log.Records()[0].FlashcardID, ShouldEqual, "card-002.png")
		})
	})

	Convey("Given a non-positive capacity option", t, func() {
		log := history.New(history.WithCapacity(0))

		Convey("Then the default applies", func() {
			So(log.Capacity(), ShouldEqual, history.DefaultCapacity)
		})
	})
}

func TestPersistence(t *testing.T) {
	Convey("Given a log with records", t, func() {
		log := history.New()
		for i := 0; i < 5; i++ {
			log.Append(record(i))
		}

		Convey("When serialized and deserialized", func() {
			data, err := json.Marshal(log)
			So(err, ShouldBeNil)
			restored := history.New()
			So(json.Unmarshal(data, restored), ShouldBeNil)

			Convey("Then the order and contents survive", func() {
				So(restored.Records(), ShouldResemble, log.Records())
			})
		})

		Convey("When an empty log is serialized", func() {
			data, err := json.Marshal(history.New())
			So(err, ShouldBeNil)

			Convey("Then it is an empty array", func() {
				So(string(data), ShouldEqual, "[]")
			})
		})
	})

	Convey("Given stored history longer than the capacity", t, func() {
		long := make([]model.HistoryRecord, 8)
		for i := range long {
			long[i] = record(i)
		}
		data, err := json.Marshal(long)
		So(err, ShouldBeNil)

		log := history.New(history.WithCapacity(5))
		So(log.UnmarshalJSON(data), ShouldBeNil)

		Convey("Then only the newest records are kept", func() {
			So(log.Records(), ShouldResemble, long[3:])
		})
	})

	Convey("Given malformed stored history", t, func() {
		log := history.New()
		log.Append(record(1))
		err := log.UnmarshalJSON([]byte(`{"not":"an array"`))

		Convey("Then it reports corruption and empties the log", func() {
			So(errors.Is(err, history.ErrCorruptHistory), ShouldBeTrue)
			So(log.Len(), ShouldEqual, 0)
		})
	})
}
