package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestObserveQuery(t *testing.T) {
	Convey("Observing a query counts it by outcome", t, func() {
		before := testutil.ToFloat64(SourceQueries.WithLabelValues("web-a", "succeeded"))
		ObserveQuery("web-a", "succeeded", time.Now().Add(-time.Second))

		So(testutil.ToFloat64(SourceQueries.WithLabelValues("web-a", "succeeded")), ShouldEqual, before+1)
	})

	Convey("Every collector is registered", t, func() {
		families, err := Registry.Gather()
		So(err, ShouldBeNil)
		So(families, ShouldNotBeEmpty)
	})
}
