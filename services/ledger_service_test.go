package services

import (
	"testing"

	"checkout-system/models"

	"github.com/stretchr/testify/assert"
)

func TestLedger_IncrementDecrement(t *testing.T) {
	l := NewLedger(testTicketTypes())

	l.Increment("ga")
	l.Increment("ga")
	l.Decrement("ga")

	assert.Equal(t, models.Selection{"ga": 1}, l.Snapshot())
	assert.True(t, l.AnySelected())
	assert.Equal(t, 1, l.TotalSelected())
}

func TestLedger_DecrementAtZeroIsNoop(t *testing.T) {
	l := NewLedger(testTicketTypes())

	l.Decrement("ga")

	assert.False(t, l.AnySelected())
	assert.Empty(t, l.Snapshot())
}

func TestLedger_IncrementCappedAtMaxPerType(t *testing.T) {
	l := NewLedger(testTicketTypes())

	for i := 0; i < models.MaxPerType+5; i++ {
		l.Increment("ga")
	}

	assert.Equal(t, models.MaxPerType, l.Snapshot()["ga"])
}

func TestLedger_IncrementCappedAtRemaining(t *testing.T) {
	// vip has a single ticket left, below the per-type maximum.
	l := NewLedger(testTicketTypes())

	l.Increment("vip")
	l.Increment("vip")
	l.Increment("vip")

	assert.Equal(t, 1, l.Snapshot()["vip"])
}

func TestLedger_UnknownTypeIgnored(t *testing.T) {
	l := NewLedger(testTicketTypes())

	l.Increment("nope")

	assert.False(t, l.AnySelected())
}

func TestLedger_SetTicketTypesPrunesVanishedSelections(t *testing.T) {
	l := NewLedger(testTicketTypes())
	l.Increment("ga")
	l.Increment("vip")

	// Promo list that no longer carries vip.
	l.SetTicketTypes([]models.TicketType{testTicketTypes()[0]})

	sel := l.Snapshot()
	assert.Equal(t, 1, sel["ga"])
	assert.NotContains(t, sel, "vip")
}

func TestLedger_RestoreClampsToCurrentInventory(t *testing.T) {
	l := NewLedger(testTicketTypes())

	l.Restore(models.Selection{
		"ga":   25, // above the per-type max
		"vip":  4,  // above remaining
		"gone": 2,  // unknown type
		"neg":  -1,
	})

	sel := l.Snapshot()
	assert.Equal(t, models.MaxPerType, sel["ga"])
	assert.Equal(t, 1, sel["vip"])
	assert.NotContains(t, sel, "gone")
	assert.NotContains(t, sel, "neg")
}

func TestLedger_SnapshotIsIndependentCopy(t *testing.T) {
	l := NewLedger(testTicketTypes())
	l.Increment("ga")

	sel := l.Snapshot()
	sel["ga"] = 99

	assert.Equal(t, 1, l.Snapshot()["ga"])
}

func TestLedger_Reset(t *testing.T) {
	l := NewLedger(testTicketTypes())
	l.Increment("ga")

	l.Reset()

	assert.False(t, l.AnySelected())
}
