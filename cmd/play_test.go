package cmd

import (
	"testing"

	"github.com/anisan-cli/aniplay/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestPlayCommand(t *testing.T) {
	Convey("Given the play command", t, func() {
		cmd, _, err := rootCmd.Find([]string{"play"})
		So(err, ShouldBeNil)
		So(cmd, ShouldEqual, playCmd)

		Convey("Its flags are read from the command it runs as", func() {
			So(cmd.Flags().Parse([]string{"-e", "4", "--id", "154587", "--no-danmaku"}), ShouldBeNil)

			episode, err := cmd.Flags().GetString("episode")
			So(err, ShouldBeNil)
			So(episode, ShouldEqual, "4")

			id, err := cmd.Flags().GetString("id")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "154587")

			interactive, err := cmd.Flags().GetBool("interactive")
			So(err, ShouldBeNil)
			So(interactive, ShouldBeFalse)

			noDanmaku, err := cmd.Flags().GetBool("no-danmaku")
			So(err, ShouldBeNil)
			So(noDanmaku, ShouldBeTrue)
		})
	})
}
