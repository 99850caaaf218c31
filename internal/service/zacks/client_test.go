package zacks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"FinRank/internal/domain/models"
	xhttp "FinRank/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><script>
var etf_holdings = {};
etf_holdings.formatted_data = [
 ["Apple Inc", "<a href=\"/stock/quote/AAPL\"><span class=\"hoverquote-symbol\">AAPL<span class=\"sr-only\"></span></span></a>", "6.9"],
 ["Microsoft Corp", "<span class=\"hoverquote-symbol\">MSFT</span>", "6.5"],
 ["Berkshire Hathaway", " BRK.B ", "1.7"],
 ["short row"]
];
</script></html>`

func TestParseHoldings(t *testing.T) {
	symbols, err := ParseHoldings(samplePage)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B"}, symbols)
}

func TestParseHoldingsRepairsJavaScriptArray(t *testing.T) {
	page := `etf_holdings.formatted_data = [['Coca-Cola', '<span class=hoverquote-symbol>KO</span>', '1.0'],];`
	symbols, err := ParseHoldings(page)
	require.NoError(t, err)
	assert.Equal(t, []string{"KO"}, symbols)
}

func TestParseHoldingsMissingArray(t *testing.T) {
	_, err := ParseHoldings("<html>maintenance</html>")
	assert.Error(t, err)
}

func TestClientHoldings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/funds/etf/SPY/holding":
			_, _ = w.Write([]byte(samplePage))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	c := NewClient(xhttp.NewClient(), srv.URL+"/funds/etf/%s/holding")
	symbols, err := c.Holdings(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Len(t, symbols, 3)

	_, err = c.Holdings(context.Background(), "MDY")
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}
