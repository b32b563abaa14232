package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssueStatus(t *testing.T) {
	cases := map[string]IssueStatus{
		"open":        IssueStatusOpen,
		"Open":        IssueStatusOpen,
		"In Progress": IssueStatusInProgress,
		"in_progress": IssueStatusInProgress,
		"in-progress": IssueStatusInProgress,
		"inprogress":  IssueStatusInProgress,
		" DONE ":      IssueStatusDone,
	}
	for in, want := range cases {
		got, err := ParseIssueStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseIssueStatus("closed")
	assert.Error(t, err)
}

func TestParseIssuePriority(t *testing.T) {
	got, err := ParseIssuePriority("high")
	require.NoError(t, err)
	assert.Equal(t, IssuePriorityHigh, got)

	got, err = ParseIssuePriority("Low")
	require.NoError(t, err)
	assert.Equal(t, IssuePriorityLow, got)

	_, err = ParseIssuePriority("urgent")
	assert.Error(t, err)
}

func TestIsAll(t *testing.T) {
	assert.True(t, IsAll(""))
	assert.True(t, IsAll("All"))
	assert.True(t, IsAll("all"))
	assert.False(t, IsAll("Open"))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(time.Minute)))
}
