package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/prefrank/internal/adapters/repository"
	"github.com/okian/prefrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func e(w, l model.ItemID) model.Edge { return model.Edge{Winner: w, Loser: l} }

func TestMemoryStore_Upsert(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx)
		defer s.Close()

		Convey("When preferences are written", func() {
			So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2), e(2, 3)}), ShouldBeNil)
			got, err := s.Preferences(ctx, "u1", model.Liked)

			Convey("Then they should be returned in write order", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, []model.Edge{e(1, 2), e(2, 3)})
				So(s.Count(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the same record is written twice", func() {
			So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2)}), ShouldBeNil)
			So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2)}), ShouldBeNil)

			Convey("Then only one record should exist", func() {
				So(s.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When a pair is judged the other way round", func() {
			So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2), e(5, 6)}), ShouldBeNil)
			So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(2, 1)}), ShouldBeNil)
			got, _ := s.Preferences(ctx, "u1", model.Liked)

			Convey("Then the record should be updated in place", func() {
				So(got, ShouldResemble, []model.Edge{e(2, 1), e(5, 6)})
				So(s.Count(ctx), ShouldEqual, 2)
			})
		})

		Convey("When a pair moves to the other polarity", func() {
			So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2)}), ShouldBeNil)
			So(s.Upsert(ctx, "u1", model.Disliked, []model.Edge{e(2, 1)}), ShouldBeNil)
			liked, _ := s.Preferences(ctx, "u1", model.Liked)
			disliked, _ := s.Preferences(ctx, "u1", model.Disliked)

			Convey("Then it should exist only under the new polarity", func() {
				So(liked, ShouldBeEmpty)
				So(disliked, ShouldResemble, []model.Edge{e(2, 1)})
				So(s.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When users write the same pair", func() {
			So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2)}), ShouldBeNil)
			So(s.Upsert(ctx, "u2", model.Liked, []model.Edge{e(2, 1)}), ShouldBeNil)
			u1, _ := s.Preferences(ctx, "u1", model.Liked)
			u2, _ := s.Preferences(ctx, "u2", model.Liked)

			Convey("Then each user should keep their own record", func() {
				So(u1, ShouldResemble, []model.Edge{e(1, 2)})
				So(u2, ShouldResemble, []model.Edge{e(2, 1)})
			})
		})

		Convey("When a batch holds a self edge", func() {
			err := s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2), e(3, 3)})

			Convey("Then nothing should be written", func() {
				So(errors.Is(err, repository.ErrInvalidEdge), ShouldBeTrue)
				So(s.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the polarity is unknown", func() {
			err := s.Upsert(ctx, "u1", model.Polarity("meh"), []model.Edge{e(1, 2)})

			Convey("Then the write should be rejected", func() {
				So(errors.Is(err, repository.ErrInvalidPolarity), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStore_Delete(t *testing.T) {
	Convey("Given stored records", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx)
		defer s.Close()
		So(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2), e(2, 3), e(3, 4)}), ShouldBeNil)

		Convey("When matching records are deleted", func() {
			n, err := s.Delete(ctx, "u1", model.Liked, []model.Edge{e(1, 2), e(3, 4)})
			got, _ := s.Preferences(ctx, "u1", model.Liked)

			Convey("Then only those should be gone", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(got, ShouldResemble, []model.Edge{e(2, 3)})
			})
		})

		Convey("When the stored winner differs", func() {
			n, err := s.Delete(ctx, "u1", model.Liked, []model.Edge{e(2, 1)})

			Convey("Then the record should survive", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				So(s.Count(ctx), ShouldEqual, 3)
			})
		})

		Convey("When the polarity differs", func() {
			n, _ := s.Delete(ctx, "u1", model.Disliked, []model.Edge{e(1, 2)})

			Convey("Then the record should survive", func() {
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	Convey("Given a closed store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx)
		So(s.Close(), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then writes should fail", func() {
			So(errors.Is(s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(1, 2)}), repository.ErrClosed), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		s := repository.NewMemoryStore(context.Background())
		defer s.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then reads should return the context error", func() {
			_, err := s.Preferences(ctx, "u1", model.Liked)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestMemoryStore_Concurrent(t *testing.T) {
	Convey("Given concurrent writers on distinct pairs", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx)
		defer s.Close()

		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func(base model.ItemID) {
				defer wg.Done()
				for i := range model.ItemID(50) {
					_ = s.Upsert(ctx, "u1", model.Liked, []model.Edge{e(base+i*2, base+i*2+1)})
				}
			}(model.ItemID(w * 1000))
		}
		wg.Wait()

		Convey("Then every record should be stored", func() {
			So(s.Count(ctx), ShouldEqual, 400)
		})
	})
}
