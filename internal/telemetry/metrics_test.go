package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"gotest.tools/v3/assert"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

func TestMetrics_ObserveCycle(t *testing.T) {
	m := New()
	snap := domain.Snapshot{
		State:          domain.BotStateRunning,
		OpenTrades:     []domain.OpenTrade{{TradeID: 1}, {TradeID: 2}},
		Balance:        &domain.Balance{Total: decimal.NewFromInt(250)},
		CategoryErrors: map[domain.Category]string{domain.CategoryLogs: "timeout"},
	}

	m.ObserveCycle(120*time.Millisecond, snap)

	assert.Equal(t, testutil.ToFloat64(m.pollCycles), 1.0)
	assert.Equal(t, testutil.ToFloat64(m.botUp), 1.0)
	assert.Equal(t, testutil.ToFloat64(m.openTrades), 2.0)
	assert.Equal(t, testutil.ToFloat64(m.balanceTotal), 250.0)
	assert.Equal(t, testutil.ToFloat64(m.fetchErrors.WithLabelValues("logs")), 1.0)

	snap.State = domain.BotStateError
	m.ObserveCycle(time.Second, snap)
	assert.Equal(t, testutil.ToFloat64(m.botUp), 0.0)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Command("start", ResultOK)
	m.CycleSkipped()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, rec.Code, 200)
	assert.Check(t, strings.Contains(string(body), `tradeconsole_commands_total{command="start",result="ok"} 1`))
	assert.Check(t, strings.Contains(string(body), "tradeconsole_poll_skipped_total 1"))
}
