package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferredState(t *testing.T) {
	cases := []struct {
		name           string
		state          string
		latestRevision string
		want           string
	}{
		{"resolved is terminal", StateResolved, ActionUpdated, StateResolved},
		{"active passes through", StateActive, ActionUpdated, StateActive},
		{"just created is new", StateNew, ActionAdded, StateNew},
		{"no revisions yet is new", StateNew, "", StateNew},
		{"updated since creation is active", StateNew, ActionUpdated, StateActive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &Event{State: tc.state, LatestRevisionAction: tc.latestRevision}
			assert.Equal(t, tc.want, e.InferredState())
		})
	}
}

func TestAlertRule_AppliesTo(t *testing.T) {
	// 空范围为通配
	wildcard := &AlertRule{}
	assert.True(t, wildcard.AppliesTo("carcass_rep"))
	assert.True(t, wildcard.AppliesTo("fence_rep"))

	scoped := &AlertRule{EventTypes: []string{"carcass_rep", "wildlife_sighting_rep"}}
	assert.True(t, scoped.AppliesTo("carcass_rep"))
	assert.False(t, scoped.AppliesTo("fence_rep"))
}

func TestDisplays(t *testing.T) {
	assert.Equal(t, "New", StateDisplay(StateNew))
	assert.Equal(t, "Active", StateDisplay(StateActive))
	assert.Equal(t, "Resolved", StateDisplay(StateResolved))
	assert.Equal(t, "unknown", StateDisplay("unknown"))

	assert.Equal(t, "Gray", PriorityDisplay(PriNone))
	assert.Equal(t, "Green", PriorityDisplay(PriInfo))
	assert.Equal(t, "Amber", PriorityDisplay(PriImportant))
	assert.Equal(t, "Red", PriorityDisplay(PriUrgent))
}

func TestRevisionUser_Display(t *testing.T) {
	assert.Equal(t, "Asha Odede", (&RevisionUser{FirstName: "Asha", LastName: "Odede", Username: "asha"}).Display())
	assert.Equal(t, "Asha", (&RevisionUser{FirstName: "Asha", Username: "asha"}).Display())
	assert.Equal(t, "asha", (&RevisionUser{Username: "asha"}).Display())
	assert.Equal(t, "", (*RevisionUser)(nil).Display())
}
