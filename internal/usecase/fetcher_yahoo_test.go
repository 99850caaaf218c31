package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FinRank/internal/service/ratelimit"
	"FinRank/internal/service/yahoo"
	xhttp "FinRank/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeDayChart = `{"chart":{"result":[{"meta":{"symbol":"X","gmtoffset":0},
"timestamp":[1704204000,1704290400,1704376800],
"indicators":{"quote":[{"close":[10,11,12]}],"adjclose":[{"adjclose":[10,11,12]}]}}],"error":null}}`

func TestFetcher_RetryPassReachesYahooAfterBreakerTrips(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 5 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(threeDayChart))
	}))
	t.Cleanup(srv.Close)

	client := yahoo.NewClient(xhttp.NewClient(), nil,
		yahoo.WithBaseURL(srv.URL),
		yahoo.WithBreaker(ratelimit.BreakerSettings{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
			Interval:            time.Minute,
		}),
	)
	cfg := fetchConfig()
	cfg.MinObservations = 1
	f := NewPriceFetcher(client, cfg, &recordingSleeper{}, nil, nil)

	p, rep, err := f.Fetch(context.Background(), []string{"A", "B", "C", "D", "E", "F"})
	require.NoError(t, err)

	// F is rejected by the open breaker without a request.
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, rep.FailedInitial)
	assert.Empty(t, rep.FailedFinal)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, p.Tickers)
	assert.EqualValues(t, 11, hits.Load())
}
