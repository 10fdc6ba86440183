package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionMatrix(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusPending:    {StatusInProgress: true, StatusApproved: true, StatusRejected: true, StatusClosed: true},
		StatusInProgress: {StatusApproved: true, StatusRejected: true, StatusClosed: true},
		StatusApproved:   {StatusClosed: true},
		StatusRejected:   {StatusClosed: true},
		StatusClosed:     {},
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestNothingLeadsBackToPending(t *testing.T) {
	for _, from := range Statuses() {
		assert.False(t, from.CanTransitionTo(StatusPending), from)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusClosed.IsTerminal())
	assert.False(t, StatusApproved.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, Status("archived").IsTerminal())
}

func TestNextStatesReturnsCopy(t *testing.T) {
	next := StatusApproved.NextStates()
	next[0] = StatusPending
	assert.Equal(t, []Status{StatusClosed}, StatusApproved.NextStates())
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" Approved ")
	assert.True(t, ok)
	assert.Equal(t, StatusApproved, st)

	_, ok = ParseStatus("archived")
	assert.False(t, ok)
}

func TestParseCurrencyAndRole(t *testing.T) {
	c, ok := ParseCurrency("$")
	assert.True(t, ok)
	assert.Equal(t, CurrencyUSD, c)

	c, ok = ParseCurrency("nis")
	assert.True(t, ok)
	assert.Equal(t, CurrencyNIS, c)

	_, ok = ParseCurrency("EUR")
	assert.False(t, ok)

	r, ok := ParseRole("Budget")
	assert.True(t, ok)
	assert.Equal(t, RoleBudget, r)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}
