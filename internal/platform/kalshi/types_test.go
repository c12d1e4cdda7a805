package kalshi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

func TestLevelDTOUnmarshalPair(t *testing.T) {
	var book OrderbookDTO
	body := `{"yes": [[20, 100], [24, 50]], "no": [[60, 200]]}`
	require.NoError(t, json.Unmarshal([]byte(body), &book))

	require.Len(t, book.Yes, 2)
	assert.Equal(t, int64(24), book.Yes[1].Price)
	assert.Equal(t, int64(50), book.Yes[1].Qty)
	require.Len(t, book.No, 1)
	assert.Equal(t, int64(60), book.No[0].Price)
}

func TestLevelDTORejectsNonPair(t *testing.T) {
	var lvl LevelDTO
	assert.Error(t, json.Unmarshal([]byte(`{"price": 20}`), &lvl))
	assert.Error(t, json.Unmarshal([]byte(`"20"`), &lvl))
}

func TestOrderbookDTOToDomain(t *testing.T) {
	dto := OrderbookDTO{
		Yes: []LevelDTO{{Price: 20, Qty: 100}, {Price: 24, Qty: 50}},
		No:  []LevelDTO{{Price: 60, Qty: 200}},
	}
	ts := time.Now()

	snap := dto.ToDomain("KXHIGHNY-26JAN28-T26", ts)
	assert.Equal(t, "KXHIGHNY-26JAN28-T26", snap.Ticker)
	assert.Equal(t, ts, snap.Timestamp)
	assert.Equal(t, int64(24), snap.BestBid(domain.SideYes))
	// YES ask derives from the best NO bid.
	assert.Equal(t, int64(40), snap.BestAsk(domain.SideYes))
}
