package config

import (
	"testing"
	"time"

	"github.com/anisan-cli/aniplay/filesystem"
	"github.com/anisan-cli/aniplay/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("When config is set up without a config file", t, func() {
		So(Setup(), ShouldBeNil)

		Convey("Every registered default is visible through viper", func() {
			for name := range Default {
				So(viper.IsSet(name), ShouldBeTrue)
			}
		})

		Convey("Durations are read back as durations", func() {
			So(viper.GetDuration(key.FetchTimeout), ShouldEqual, 20*time.Second)
		})
	})

	Convey("EnvKeyReplacer converts dots to underscores", t, func() {
		So(EnvKeyReplacer.Replace("fetch.settle_window"), ShouldEqual, "fetch_settle_window")
	})
}

func TestField(t *testing.T) {
	Convey("Given the fetch timeout field", t, func() {
		field := Default[key.FetchTimeout]

		Convey("Its env name carries the app prefix", func() {
			So(field.Env(), ShouldEqual, "ANIPLAY_FETCH_TIMEOUT")
		})

		Convey("It parses durations", func() {
			v, err := field.Parse([]string{"5s"})
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 5*time.Second)
			So(field.TypeName(), ShouldEqual, "duration")
		})

		Convey("It rejects garbage", func() {
			_, err := field.Parse([]string{"soon"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a list field", t, func() {
		field := Default[key.SelectorPreferredSources]
		v, err := field.Parse([]string{"a", "b"})
		So(err, ShouldBeNil)
		So(v, ShouldResemble, []string{"a", "b"})
	})
}
