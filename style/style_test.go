package style

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPosition(t *testing.T) {
	Convey("Given a playback position", t, func() {
		Convey("Minutes are not padded", func() {
			So(Position(65_000, 24*60_000), ShouldStartWith, "1:05 / ")
			So(Position(65_000, 24*60_000), ShouldContainSubstring, "24:00")
		})

		Convey("Hours are printed when reached", func() {
			So(Position(3_725_000, 0), ShouldStartWith, "1:02:05 / ")
		})

		Convey("An unknown duration is dashed", func() {
			So(Position(0, 0), ShouldContainSubstring, "--:--")
		})
	})
}
